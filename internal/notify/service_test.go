package notify

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/session"
	"github.com/nhle/collabtask/tests/testutil"
)

type memCache struct {
	mu    sync.Mutex
	items map[string]model.Notification
	order []string
}

func (c *memCache) UpsertNotifications(_ context.Context, items []model.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.items == nil {
		c.items = make(map[string]model.Notification)
	}
	for _, n := range items {
		if old, ok := c.items[n.ID]; ok && old.Read {
			n.Read = true
		} else if !ok {
			c.order = append(c.order, n.ID)
		}
		c.items[n.ID] = n
	}
	return nil
}

func (c *memCache) ListNotifications(_ context.Context, limit int) ([]model.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Notification
	for _, id := range c.order {
		if n, ok := c.items[id]; ok {
			out = append(out, n)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *memCache) DeleteNotification(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, id)
	return nil
}

type serviceFixture struct {
	backend *testutil.FakeBackend
	session *session.Session
	client  *api.Client
	service *Service
	cache   *memCache
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()

	fb := testutil.NewFakeBackend(t)
	sess := testutil.NewSession(t, fb.Credential())
	client := api.NewClient(api.ConfigFrom(testutil.APIConfig(fb.URL())), sess, nil)
	cache := &memCache{}

	return serviceFixture{
		backend: fb,
		session: sess,
		client:  client,
		service: NewService(client, NewReconciler(), WithCache(cache), WithPageSize(20)),
		cache:   cache,
	}
}

func TestService_RefreshAndMarkRead(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.AddNotification(note("n1", false))
	f.backend.AddNotification(note("n2", false))
	ctx := context.Background()

	require.NoError(t, f.service.Refresh(ctx))
	snap := f.service.Reconciler().Snapshot()
	assert.Equal(t, []string{"n2", "n1"}, ids(snap))
	assert.Equal(t, 2, snap.Unread)

	require.NoError(t, f.service.MarkRead(ctx, "n1"))
	server, _ := f.backend.Notification("n1")
	assert.True(t, server.Read)
	assert.Equal(t, 1, f.service.Reconciler().Unread())

	require.NoError(t, f.service.MarkAllRead(ctx))
	server, _ = f.backend.Notification("n2")
	assert.True(t, server.Read)
	assert.Zero(t, f.service.Reconciler().Unread())
}

func TestService_FailedMirrorKeepsLocalReadState(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.AddNotification(note("n1", false))
	ctx := context.Background()
	require.NoError(t, f.service.Refresh(ctx))

	f.backend.Fail(http.MethodPatch, "/notifications/n1/read", http.StatusInternalServerError, "database unavailable")
	err := f.service.MarkRead(ctx, "n1")
	require.Error(t, err)
	assert.Equal(t, "database unavailable", api.UserMessage(err))

	// The server still reports it unread; the reconciler does not.
	require.NoError(t, f.service.Refresh(ctx))
	assert.Zero(t, f.service.Reconciler().Unread())
	assert.True(t, f.cache.items["n1"].Read)
}

func TestService_AcceptInvite(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.AddInvite("org-9", "Globex")
	f.backend.AddNotification(model.Notification{
		ID:    "inv-1",
		Type:  model.NotificationOrgInvite,
		Title: "Organization invitation",
		Metadata: model.OrgInviteMetadata{
			OrgID:       "org-9",
			OrgName:     "Globex",
			InviterName: "Grace",
		},
	})
	f.backend.AddNotification(note("chat-1", false))
	ctx := context.Background()
	require.NoError(t, f.service.Refresh(ctx))

	err := f.service.AcceptInvite(ctx, "chat-1")
	assert.ErrorIs(t, err, ErrNotAnInvite)

	require.NoError(t, f.service.AcceptInvite(ctx, "inv-1"))

	orgs, err := f.client.ListOrganizations(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "Globex", orgs[0].Name)

	require.NoError(t, f.service.Refresh(ctx))
	assert.Equal(t, []string{"chat-1"}, ids(f.service.Reconciler().Snapshot()))
	_, cached := f.cache.items["inv-1"]
	assert.False(t, cached)

	// The invitation is gone server-side, so answering again fails.
	f.service.Reconciler().Replace([]model.Notification{{
		ID:       "inv-2",
		Type:     model.NotificationOrgInvite,
		Metadata: model.OrgInviteMetadata{OrgID: "org-9"},
	}})
	err = f.service.RejectInvite(ctx, "inv-2")
	require.Error(t, err)
	assert.Equal(t, "Invitation not found", api.UserMessage(err))
}

func TestService_WarmFromCache(t *testing.T) {
	f := newServiceFixture(t)
	f.backend.AddNotification(note("n1", true))
	f.backend.AddNotification(note("n2", false))
	ctx := context.Background()
	require.NoError(t, f.service.Refresh(ctx))

	fresh := NewService(f.client, NewReconciler(), WithCache(f.cache))
	require.NoError(t, fresh.Warm(ctx))

	snap := fresh.Reconciler().Snapshot()
	assert.Len(t, snap.Items, 2)
	assert.Equal(t, 1, snap.Unread)
}

func TestListener_OverRealSocket(t *testing.T) {
	f := newServiceFixture(t)

	cfg := testutil.APIConfig(f.backend.URL())
	listener := NewListener(ListenerConfig{
		URL:              cfg.WebSocketURL(),
		MaxAttempts:      5,
		BaseDelay:        5 * time.Millisecond,
		MaxDelay:         50 * time.Millisecond,
		Liveness:         time.Hour,
		HandshakeTimeout: time.Second,
	}, WebSocketDialer{}, f.session, f.service)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = listener.Run(ctx)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	connected := func(n int) func() bool {
		return func() bool {
			return f.backend.WSConnects() == n && listener.State() == StateConnected
		}
	}
	require.Eventually(t, connected(1), 2*time.Second, 5*time.Millisecond)

	f.backend.Push(note("live-1", false))
	require.Eventually(t, func() bool {
		_, ok := f.service.Reconciler().Get("live-1")
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	// A pull that includes the pushed id does not double it.
	require.NoError(t, f.service.Refresh(ctx))
	snap := f.service.Reconciler().Snapshot()
	assert.Equal(t, []string{"live-1"}, ids(snap))
	assert.Equal(t, 1, snap.Unread)

	// Server-side error: reconnects on its own.
	f.backend.CloseSockets(websocket.StatusInternalError, "restarting")
	require.Eventually(t, connected(2), 2*time.Second, 5*time.Millisecond)

	// Unauthorized: stays down until the credential changes.
	f.backend.CloseSockets(websocket.StatusPolicyViolation, "Unauthorized")
	require.Eventually(t, func() bool { return listener.State() == StateDisconnected },
		2*time.Second, 5*time.Millisecond)
	listener.CheckLiveness()
	listener.flush()
	assert.Equal(t, 2, f.backend.WSConnects())

	require.NoError(t, f.session.Login(f.backend.Credential()))
	listener.CheckLiveness()
	require.Eventually(t, connected(3), 2*time.Second, 5*time.Millisecond)
}
