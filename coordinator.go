package authclient

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// refreshOutcome is the shared result of one refresh attempt, fanned out to
// every waiter. Exactly one of accessToken or err is set.
type refreshOutcome struct {
	accessToken string
	err         error
}

// refreshWaiter is a pending request's continuation: a one-shot buffered
// channel the coordinator resolves exactly once. seq records join order.
type refreshWaiter struct {
	seq int64
	ch  chan refreshOutcome
}

// Coordinator serializes token refreshes. In the Idle state the first caller
// of ObtainFreshToken starts a refresh; while Refreshing, further callers
// join a FIFO queue instead of starting their own. The single outcome is
// fanned out to every queued waiter in join order.
//
// On success the coordinator writes the new access token (refresh token
// unchanged) into the session store before releasing waiters. On failure it
// clears the store, releases waiters with the error, and emits exactly one
// session-expired notification.
type Coordinator struct {
	store     *SessionStore
	refresher Refresher
	notifier  Notifier
	logger    *slog.Logger
	timeout   time.Duration

	mu         sync.Mutex
	refreshing bool
	waiters    []refreshWaiter
	gen        uint64 // bumped when the session is invalidated under us
	nextSeq    int64
}

// NewCoordinator wires a coordinator to its store, refresher, and notifier.
// The store's clear hook is registered here so an external Clear (logout)
// drains queued waiters and wipes the session in one step under the
// coordinator's lock, instead of leaving waiters to retry with stale tokens
// or letting an in-flight refresh result overwrite the cleared session.
func NewCoordinator(
	store *SessionStore,
	refresher Refresher,
	notifier Notifier,
	logger *slog.Logger,
	timeout time.Duration,
) *Coordinator {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	c := &Coordinator{
		store:     store,
		refresher: refresher,
		notifier:  notifier,
		logger:    logger,
		timeout:   timeout,
	}
	store.setOnClear(c.abortWaiters)
	return c
}

// ObtainFreshToken returns an access token newer than the one that just got
// rejected. The first caller per expiry event triggers the network refresh;
// concurrent callers share its outcome. Blocks until the shared refresh
// resolves or ctx is done.
func (c *Coordinator) ObtainFreshToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	seq := c.nextSeq
	c.nextSeq++
	w := refreshWaiter{seq: seq, ch: make(chan refreshOutcome, 1)}
	c.waiters = append(c.waiters, w)
	leader := !c.refreshing
	var gen uint64
	if leader {
		c.refreshing = true
		gen = c.gen
	}
	c.mu.Unlock()

	c.logger.Debug("refresh waiter joined", "seq", seq, "leader", leader)

	if leader {
		go c.runRefresh(gen)
	}

	select {
	case out := <-w.ch:
		return out.accessToken, out.err
	case <-ctx.Done():
		// The refresh itself keeps running; only this waiter gives up.
		return "", ctx.Err()
	}
}

// runRefresh executes the single in-flight refresh attempt.
func (c *Coordinator) runRefresh(gen uint64) {
	session := c.store.Get()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	accessToken, err := c.refresher.Refresh(ctx, session.RefreshToken)
	if err != nil {
		c.finishFailure(gen, err)
		return
	}
	c.finishSuccess(gen, accessToken, session.RefreshToken)
}

// finishSuccess stores the new token pair and releases every waiter with it,
// in join order. The queue is captured and reset before anyone is notified,
// so a waiter that immediately asks again starts a clean Idle cycle.
func (c *Coordinator) finishSuccess(gen uint64, accessToken, refreshToken string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		c.logger.Warn("dropping refresh result for invalidated session")
		return
	}
	released := c.waiters
	c.waiters = nil
	c.refreshing = false
	// The store write stays under the mutex: an external Clear serializes
	// through abortWaiters, so it cannot land between the generation check
	// and this write and then be overwritten by it.
	c.store.Set(accessToken, refreshToken)
	c.mu.Unlock()

	for _, w := range released {
		c.logger.Debug("refresh waiter released", "seq", w.seq, "ok", true)
		w.ch <- refreshOutcome{accessToken: accessToken}
	}
	c.logger.Info("access token refreshed", "waiters", len(released))
}

// finishFailure is the terminal path for a failed refresh attempt: clear the
// session, fail every waiter, emit one session-expired notification.
func (c *Coordinator) finishFailure(gen uint64, refreshErr error) {
	c.mu.Lock()
	if gen != c.gen {
		// Session was invalidated while we were refreshing; waiters are
		// already gone and the expiry has already been signalled.
		c.mu.Unlock()
		return
	}
	released := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.gen++
	c.store.invalidate()
	c.mu.Unlock()

	for _, w := range released {
		c.logger.Debug("refresh waiter released", "seq", w.seq, "ok", false)
		w.ch <- refreshOutcome{err: refreshErr}
	}

	c.logger.Info("session expired", "reason", refreshErr, "waiters", len(released))
	c.notifier.Notify(sessionExpiredNotification())
}

// ExpireSession terminates the session without another refresh attempt. The
// gateway routes here when the refresh call itself comes back unauthorized.
// Expiring a session that is already gone, with nobody waiting, is a no-op;
// back-to-back terminal rejections produce a single notification.
func (c *Coordinator) ExpireSession(reason error) {
	c.mu.Lock()
	released := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.gen++
	hadSession := c.store.Get().Authenticated()
	c.store.invalidate()
	c.mu.Unlock()

	for _, w := range released {
		c.logger.Debug("refresh waiter released", "seq", w.seq, "ok", false)
		w.ch <- refreshOutcome{err: reason}
	}

	if !hadSession && len(released) == 0 {
		return
	}
	c.logger.Info("session expired", "reason", reason, "waiters", len(released))
	c.notifier.Notify(sessionExpiredNotification())
}

// abortWaiters implements the store's Clear: under the coordinator lock it
// drains queued waiters, invalidates any in-flight refresh result, and wipes
// the session, so nothing can resurrect it afterwards. No notification is
// emitted here; an explicit Clear is a logout, not a refresh failure.
func (c *Coordinator) abortWaiters() {
	c.mu.Lock()
	released := c.waiters
	c.waiters = nil
	c.refreshing = false
	c.gen++
	c.store.invalidate()
	c.mu.Unlock()

	for _, w := range released {
		c.logger.Debug("refresh waiter released", "seq", w.seq, "ok", false)
		w.ch <- refreshOutcome{err: ErrSessionExpired}
	}
}

// pending returns the queued waiter count. Test hook.
func (c *Coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
