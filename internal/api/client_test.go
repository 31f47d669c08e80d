package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/collabtask/internal/api"
	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/internal/session"
	"github.com/nhle/collabtask/tests/testutil"
)

type fixture struct {
	backend *testutil.FakeBackend
	session *session.Session
	client  *api.Client
	ends    *atomic.Int32
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	fb := testutil.NewFakeBackend(t)
	fb.AddOrganization(model.Organization{ID: "org-1", Name: "Acme"})

	sess := testutil.NewSession(t, fb.Credential())
	ends := &atomic.Int32{}
	sess.OnEnd(func(error) { ends.Add(1) })

	client := api.NewClient(api.ConfigFrom(testutil.APIConfig(fb.URL())), sess, nil)
	return fixture{backend: fb, session: sess, client: client, ends: ends}
}

func TestClient_RefreshesExpiredTokenTransparently(t *testing.T) {
	f := newFixture(t)
	stale := f.session.AccessToken()
	f.backend.Expire(stale)

	orgs, err := f.client.ListOrganizations(context.Background())
	require.NoError(t, err)

	require.Len(t, orgs, 1)
	assert.Equal(t, "Acme", orgs[0].Name)
	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.Equal(t, 2, f.backend.Calls(http.MethodGet, "/organizations"))
	assert.NotEqual(t, stale, f.session.AccessToken())
	assert.Zero(t, f.ends.Load())
}

func TestClient_ConcurrentCallsShareOneRefresh(t *testing.T) {
	f := newFixture(t)
	f.backend.Expire(f.session.AccessToken())
	release := f.backend.HoldRefresh()
	defer release()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.client.ListOrganizations(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return f.backend.Calls(http.MethodGet, "/organizations") >= n
	}, 2*time.Second, 5*time.Millisecond)
	release()
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "call %d", i)
	}
	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.Equal(t, 2*n, f.backend.Calls(http.MethodGet, "/organizations"))
}

func TestClient_CancelledCallerDoesNotAbortSharedRefresh(t *testing.T) {
	f := newFixture(t)
	f.backend.Expire(f.session.AccessToken())
	release := f.backend.HoldRefresh()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := f.client.ListOrganizations(ctx)
		first <- err
	}()
	require.Eventually(t, func() bool { return f.backend.RefreshCalls() == 1 },
		2*time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := f.client.ListOrganizations(context.Background())
		second <- err
	}()
	require.Eventually(t, func() bool {
		return f.backend.Calls(http.MethodGet, "/organizations") == 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled call did not return")
	}

	release()
	select {
	case err := <-second:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting call did not return")
	}

	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.Zero(t, f.ends.Load())
	assert.True(t, f.session.Present())
}

func TestClient_ConcurrentCallsShareRefreshFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.Expire(f.session.AccessToken())
	f.backend.FailRefresh(true)
	release := f.backend.HoldRefresh()
	defer release()

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.client.ListOrganizations(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return f.backend.Calls(http.MethodGet, "/organizations") >= n
	}, 2*time.Second, 5*time.Millisecond)
	release()
	wg.Wait()

	for i, err := range errs {
		var expired *api.SessionExpiredError
		assert.True(t, errors.As(err, &expired), "call %d: %v", i, err)
	}
	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.Equal(t, int32(1), f.ends.Load())
	assert.False(t, f.session.Present())
}

func TestClient_RetryBudgetEndsSession(t *testing.T) {
	f := newFixture(t)
	f.backend.RejectAll(true)

	_, err := f.client.ListOrganizations(context.Background())
	require.Error(t, err)

	assert.True(t, api.IsSessionExpired(err))
	assert.Equal(t, 4, f.backend.Calls(http.MethodGet, "/organizations"))
	assert.Equal(t, 3, f.backend.RefreshCalls())
	assert.Equal(t, int32(1), f.ends.Load())
	assert.False(t, f.session.Present())
}

func TestClient_FailedRefreshEndsSession(t *testing.T) {
	f := newFixture(t)
	f.backend.Expire(f.session.AccessToken())
	f.backend.FailRefresh(true)

	_, err := f.client.ListOrganizations(context.Background())
	require.Error(t, err)

	var expired *api.SessionExpiredError
	require.True(t, errors.As(err, &expired))
	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.Equal(t, int32(1), f.ends.Load())
	assert.False(t, f.session.Present())

	// A later call carries no token and is not refreshed.
	_, err = f.client.ListOrganizations(context.Background())
	require.Error(t, err)
	assert.False(t, api.IsSessionExpired(err))
	assert.Equal(t, 1, f.backend.RefreshCalls())
}

func TestClient_TimeoutIsNotAnAuthFailure(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	sess := testutil.NewSession(t, fb.Credential())
	fb.Delay(http.MethodGet, "/organizations", 500*time.Millisecond)

	client := api.NewClient(api.Config{
		BaseURL:        fb.URL(),
		Timeout:        50 * time.Millisecond,
		MaxAuthRetries: 3,
	}, sess, nil)

	_, err := client.ListOrganizations(context.Background())
	require.Error(t, err)

	assert.True(t, api.IsTimeout(err))
	assert.False(t, api.IsSessionExpired(err))
	assert.Equal(t, "Request failed", api.UserMessage(err))
	assert.Equal(t, 1, fb.Calls(http.MethodGet, "/organizations"))
	assert.Zero(t, fb.RefreshCalls())
	assert.True(t, sess.Present())
}

func TestClient_AuthPathsAreNeverRefreshed(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail(http.MethodPost, "/auth/logout", http.StatusUnauthorized, "Token has expired.")

	err := f.client.Logout(context.Background())
	require.Error(t, err)

	var reqErr *api.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusUnauthorized, reqErr.Status)
	assert.Zero(t, f.backend.RefreshCalls())
	assert.False(t, f.session.Present(), "logout clears the credential regardless")
	assert.Zero(t, f.ends.Load(), "logout is not an involuntary end")
}

func TestClient_OverrideTokenBypassesRefresh(t *testing.T) {
	f := newFixture(t)

	var user model.User
	err := f.client.Get(context.Background(), "/users/me", &user, api.WithToken("not-a-real-token"))
	require.Error(t, err)

	assert.False(t, api.IsSessionExpired(err))
	assert.Zero(t, f.backend.RefreshCalls())
	assert.True(t, f.session.Present())
}

func TestClient_LoginFlow(t *testing.T) {
	fb := testutil.NewFakeBackend(t)
	sess := testutil.NewSession(t, model.Credential{})
	client := api.NewClient(api.ConfigFrom(testutil.APIConfig(fb.URL())), sess, nil)
	ctx := context.Background()

	_, err := client.LoginInitiate(ctx, testutil.FakeEmail, "wrong")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password.", api.UserMessage(err))

	challenge, err := client.LoginInitiate(ctx, testutil.FakeEmail, testutil.FakePassword)
	require.NoError(t, err)
	assert.Equal(t, fb.User.ID, challenge.ID)

	_, err = client.VerifyOTP(ctx, *challenge, "000000")
	require.Error(t, err)
	assert.False(t, sess.Present())

	cred, err := client.VerifyOTP(ctx, *challenge, testutil.FakeOTP)
	require.NoError(t, err)
	assert.Equal(t, cred.AccessToken, sess.AccessToken())
	assert.Equal(t, "Ada Lovelace", cred.User.DisplayName())

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, fb.User.Email, me.Email)

	require.NoError(t, client.Logout(ctx))
	assert.False(t, sess.Present())
	assert.Equal(t, 1, fb.Calls(http.MethodPost, "/auth/logout"))
}

func TestClient_VersionMismatchIsConflict(t *testing.T) {
	f := newFixture(t)
	f.backend.SeedTask("p1", model.Task{ID: "t1", Title: "Write docs"})
	f.backend.WriteTask("p1", "t1", func(t *model.Task) { t.Title = "Write better docs" })

	_, err := f.client.ChangeTaskStatus(context.Background(), "org-1", "p1", "t1",
		model.StatusChange{Status: model.StatusDone, Version: 1})
	require.Error(t, err)
	assert.True(t, api.IsConflict(err))

	task, err := f.client.ChangeTaskStatus(context.Background(), "org-1", "p1", "t1",
		model.StatusChange{Status: model.StatusDone, Version: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, task.Version)
	assert.Equal(t, model.StatusDone, task.Status)
}

func TestClient_ServerMessages(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantMsg  string
		conflict bool
	}{
		{
			name:    "message field",
			status:  http.StatusForbidden,
			body:    `{"success":false,"message":"Only admins can do that"}`,
			wantMsg: "Only admins can do that",
		},
		{
			name:    "detail string",
			status:  http.StatusNotFound,
			body:    `{"detail":"Project not found"}`,
			wantMsg: "Project not found",
		},
		{
			name:    "validation list",
			status:  http.StatusUnprocessableEntity,
			body:    `{"detail":[{"loc":["body","title"],"msg":"field required"},{"msg":"invalid email"}]}`,
			wantMsg: "field required; invalid email",
		},
		{
			name:    "success false on 200",
			status:  http.StatusOK,
			body:    `{"success":false,"message":"","error":"Quota exceeded"}`,
			wantMsg: "Quota exceeded",
		},
		{
			name:    "no body",
			status:  http.StatusBadGateway,
			body:    ``,
			wantMsg: "Request failed",
		},
		{
			name:     "mismatch text without 409",
			status:   http.StatusBadRequest,
			body:     `{"detail":"Task version mismatch"}`,
			wantMsg:  "Task version mismatch",
			conflict: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			sess := testutil.NewSession(t, model.Credential{AccessToken: "a", RefreshToken: "r"})
			client := api.NewClient(api.Config{BaseURL: srv.URL}, sess, nil)

			err := client.Get(context.Background(), "/projects", nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, api.UserMessage(err))
			assert.Equal(t, tt.conflict, api.IsConflict(err))
		})
	}
}

func TestClient_SendsRequestHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"success":true,"message":"ok","data":{"id":"u1"}}`))
	}))
	defer srv.Close()

	sess := testutil.NewSession(t, model.Credential{AccessToken: "tok", RefreshToken: "r"})
	client := api.NewClient(api.Config{BaseURL: srv.URL + "/"}, sess, nil)

	user, err := client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	_, err = uuid.Parse(got.Get("X-Request-ID"))
	assert.NoError(t, err)
}
