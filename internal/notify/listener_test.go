package notify

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/collabtask/internal/model"
)

type fakeTokens struct {
	mu      sync.Mutex
	token   string
	version uint64
}

func (f *fakeTokens) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) Version() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

func (f *fakeTokens) set(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.version++
}

type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	closeErr  error
	closeCode websocket.StatusCode
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 8), closed: make(chan struct{})}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.frames:
		return data, nil
	case <-c.closed:
		c.mu.Lock()
		defer c.mu.Unlock()
		return nil, c.closeErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close(code websocket.StatusCode, reason string) error {
	c.shut(code, websocket.CloseError{Code: code, Reason: reason})
	return nil
}

// serverClose simulates the server ending the connection with code.
func (c *fakeConn) serverClose(code websocket.StatusCode) {
	c.shut(code, websocket.CloseError{Code: code})
}

// drop simulates a connection lost without a close frame.
func (c *fakeConn) drop() {
	c.shut(-1, errors.New("unexpected EOF"))
}

func (c *fakeConn) shut(code websocket.StatusCode, err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closeCode = code
		c.closeErr = err
		c.mu.Unlock()
		close(c.closed)
	})
}

func (c *fakeConn) code() websocket.StatusCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

// fakeDialer hands out scripted results in order; once the script runs out
// every dial fails with a network error.
type fakeDialer struct {
	mu     sync.Mutex
	script []dialResult
	urls   []string
}

type dialResult struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) queue(results ...dialResult) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, results...)
}

func (d *fakeDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)

	if len(d.script) == 0 {
		return nil, errors.New("connection refused")
	}
	next := d.script[0]
	d.script = d.script[1:]
	if next.err != nil {
		return nil, next.err
	}
	return next.conn, nil
}

func (d *fakeDialer) url(i int) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[i]
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

type retryLog struct {
	mu       sync.Mutex
	attempts []int
	delays   []time.Duration
}

func (r *retryLog) hook(attempt int, delay time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
	r.delays = append(r.delays, delay)
}

func (r *retryLog) snapshot() ([]int, []time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.attempts...), append([]time.Duration(nil), r.delays...)
}

type harness struct {
	listener *Listener
	dialer   *fakeDialer
	tokens   *fakeTokens
	retries  *retryLog
	rec      *Reconciler
}

func (h harness) waitState(t *testing.T, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return h.listener.State() == want },
		2*time.Second, time.Millisecond, "state never became %s", want)
}

func TestListener_PolicyViolationHalts(t *testing.T) {
	conn := newFakeConn()
	h := startListenerWith(t, "tok-1", dialResult{conn: conn})
	h.waitState(t, StateConnected)

	conn.serverClose(websocket.StatusPolicyViolation)
	h.waitState(t, StateDisconnected)

	for i := 0; i < 3; i++ {
		h.listener.CheckLiveness()
	}
	h.listener.flush()

	assert.Equal(t, 1, h.dialer.dials())
	attempts, _ := h.retries.snapshot()
	assert.Empty(t, attempts, "no reconnect is scheduled")

	// A fresh login restarts the channel.
	next := newFakeConn()
	h.dialer.queue(dialResult{conn: next})
	h.tokens.set("tok-2")
	h.listener.CheckLiveness()
	h.waitState(t, StateConnected)
	assert.Equal(t, 2, h.dialer.dials())
	assert.Contains(t, h.dialer.url(1), "token=tok-2")
}

func TestListener_AbnormalCloseBacksOffUntilExhausted(t *testing.T) {
	conn := newFakeConn()
	h := startListenerWith(t, "tok", dialResult{conn: conn})
	h.waitState(t, StateConnected)

	// Every redial fails from here on.
	conn.drop()

	require.Eventually(t, func() bool {
		return h.dialer.dials() == 6 && h.listener.State() == StateDisconnected
	}, 2*time.Second, time.Millisecond)

	attempts, delays := h.retries.snapshot()
	assert.Equal(t, []int{1, 2, 3, 4, 5}, attempts)
	assert.Equal(t, []time.Duration{
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
		16 * time.Millisecond,
		20 * time.Millisecond,
	}, delays)
	assert.Equal(t, StateDisconnected, h.listener.State())

	// Exhausted: liveness does not revive it, Connect does.
	h.listener.CheckLiveness()
	h.listener.flush()
	assert.Equal(t, 6, h.dialer.dials())

	h.dialer.queue(dialResult{conn: newFakeConn()})
	h.listener.Connect()
	h.waitState(t, StateConnected)
	assert.Equal(t, 7, h.dialer.dials())
}

func TestListener_ConnectResetsAttempts(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	h := startListenerWith(t, "tok",
		dialResult{conn: first},
		dialResult{err: errors.New("connection refused")},
		dialResult{conn: second},
	)
	h.waitState(t, StateConnected)

	first.serverClose(websocket.StatusGoingAway)
	require.Eventually(t, func() bool { return h.dialer.dials() == 3 }, 2*time.Second, time.Millisecond)
	h.waitState(t, StateConnected)

	second.drop()
	require.Eventually(t, func() bool {
		attempts, _ := h.retries.snapshot()
		return len(attempts) == 3
	}, 2*time.Second, time.Millisecond)

	attempts, _ := h.retries.snapshot()
	assert.Equal(t, []int{1, 2, 1}, attempts)
}

func TestListener_UnauthorizedHandshakeHalts(t *testing.T) {
	h := startListenerWith(t, "tok", dialResult{err: &HandshakeError{Status: http.StatusForbidden, Err: errors.New("403")}})

	require.Eventually(t, func() bool {
		return h.dialer.dials() == 1 && h.listener.State() == StateDisconnected
	}, 2*time.Second, time.Millisecond)
	h.listener.CheckLiveness()
	h.listener.flush()

	assert.Equal(t, 1, h.dialer.dials())
	attempts, _ := h.retries.snapshot()
	assert.Empty(t, attempts)
}

func TestListener_FramesReachTheReconciler(t *testing.T) {
	conn := newFakeConn()
	h := startListenerWith(t, "tok", dialResult{conn: conn})
	h.waitState(t, StateConnected)

	conn.frames <- []byte(`{"type":"connected","message":"Connected to notifications"}`)
	conn.frames <- []byte(`not json`)
	conn.frames <- []byte(`{"type":"notification","data":{"id":"n1","type":"meeting","title":"Standup","message":"at 9","metadata":{"meeting_id":"m1","title":"Standup"},"read":false}}`)
	conn.frames <- []byte(`{"type":"notification","data":{"id":"n1","type":"meeting","title":"Standup","message":"at 9","read":false}}`)
	conn.frames <- []byte(`{"type":"notification","data":{}}`)

	require.Eventually(t, func() bool { return len(h.rec.Snapshot().Items) == 1 }, 2*time.Second, time.Millisecond)
	h.listener.flush()

	snap := h.rec.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Unread)
	meta, ok := snap.Items[0].Metadata.(model.MeetingMetadata)
	require.True(t, ok)
	assert.Equal(t, "m1", meta.MeetingID)
}

func TestListener_LivenessFollowsCredential(t *testing.T) {
	conn := newFakeConn()
	h := startListenerWith(t, "tok", dialResult{conn: conn})
	h.waitState(t, StateConnected)

	h.tokens.set("")
	h.listener.CheckLiveness()
	h.waitState(t, StateDisconnected)

	require.Eventually(t, func() bool { return conn.code() == websocket.StatusNormalClosure },
		time.Second, time.Millisecond)
	attempts, _ := h.retries.snapshot()
	assert.Empty(t, attempts)

	h.dialer.queue(dialResult{conn: newFakeConn()})
	h.tokens.set("tok-2")
	h.listener.CheckLiveness()
	h.waitState(t, StateConnected)
}

func TestListener_DisconnectHoldsUntilConnect(t *testing.T) {
	conn := newFakeConn()
	h := startListenerWith(t, "tok", dialResult{conn: conn})
	h.waitState(t, StateConnected)

	h.listener.Disconnect()
	h.waitState(t, StateDisconnected)

	h.listener.CheckLiveness()
	h.listener.flush()
	assert.Equal(t, 1, h.dialer.dials())

	h.dialer.queue(dialResult{conn: newFakeConn()})
	h.listener.Connect()
	h.waitState(t, StateConnected)
	assert.Equal(t, 2, h.dialer.dials())
}

func TestListener_NoCredentialNoDial(t *testing.T) {
	h := startListenerWith(t, "")
	h.listener.CheckLiveness()
	h.listener.Connect()
	h.listener.flush()

	assert.Zero(t, h.dialer.dials())
	assert.Equal(t, StateDisconnected, h.listener.State())
}

// startListenerWith queues dial results before the listener starts so the
// first connect sees them.
func startListenerWith(t *testing.T, token string, results ...dialResult) harness {
	t.Helper()

	h := harness{
		dialer:  &fakeDialer{script: results},
		tokens:  &fakeTokens{token: token, version: 1},
		retries: &retryLog{},
		rec:     NewReconciler(),
	}
	h.listener = NewListener(ListenerConfig{
		URL:              "ws://backend.test",
		MaxAttempts:      5,
		BaseDelay:        time.Millisecond,
		MaxDelay:         20 * time.Millisecond,
		Liveness:         time.Hour,
		HandshakeTimeout: time.Second,
	}, h.dialer, h.tokens, h.rec, WithRetryHook(h.retries.hook))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.listener.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return h
}
