package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "chime/pkg/logx"
)

func newTestServer(t *testing.T) (*Server, *memStore, *fakeScheduler, http.Handler) {
	t.Helper()
	st := newMemStore()
	sched := &fakeScheduler{}
	srv := NewServer(st, st, sched, &fakeHub{},
		AuthConfig{Secret: "test-secret", TokenTTL: time.Hour}, time.UTC, logx.Nop())
	return srv, st, sched, srv.Routes()
}

func postJSON(t *testing.T, h http.Handler, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, h, http.MethodPost, path, token, body)
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, h http.Handler, username string) string {
	t.Helper()
	rec := postJSON(t, h, "/api/register", "", registerRequest{Username: username, Password: "hunter2hunter2"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.NotEmpty(t, tok.Token)
	return tok.Token
}

func TestRegisterIssuesToken(t *testing.T) {
	srv, _, _, h := newTestServer(t)
	tok := registerAndLogin(t, h, "alice")

	userID, err := srv.verifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(1), userID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	_, _, _, h := newTestServer(t)
	registerAndLogin(t, h, "alice")

	rec := postJSON(t, h, "/api/register", "", registerRequest{Username: "alice", Password: "hunter2hunter2"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	_, _, _, h := newTestServer(t)

	rec := postJSON(t, h, "/api/register", "", registerRequest{Username: "al", Password: "hunter2hunter2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, h, "/api/register", "", registerRequest{Username: "alice", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginRoundTrip(t *testing.T) {
	_, _, _, h := newTestServer(t)
	registerAndLogin(t, h, "alice")

	rec := postJSON(t, h, "/api/login", "", loginRequest{Username: "alice", Password: "hunter2hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h, "/api/login", "", loginRequest{Username: "alice", Password: "wrongwrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, h, "/api/login", "", loginRequest{Username: "nobody", Password: "hunter2hunter2"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware(t *testing.T) {
	srv, _, _, h := newTestServer(t)
	tok := registerAndLogin(t, h, "alice")

	rec := doJSON(t, h, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/tasks", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/tasks", tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Query-parameter token, as the websocket client sends it.
	req := httptest.NewRequest(http.MethodGet, "/api/tasks?token="+tok, nil)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	_, err := srv.verifyToken(tok)
	require.NoError(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	st := newMemStore()
	srv := NewServer(st, st, &fakeScheduler{}, &fakeHub{},
		AuthConfig{Secret: "test-secret", TokenTTL: -time.Minute}, time.UTC, logx.Nop())
	h := srv.Routes()

	tok := registerAndLogin(t, h, "alice")
	rec := doJSON(t, h, http.MethodGet, "/api/tasks", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
