package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lizhaowen72/eventbridge/internal/deadletter"
	"github.com/lizhaowen72/eventbridge/pkg/models"
)

func newFakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("POST /api/command/users", func(w http.ResponseWriter, r *http.Request) {
		var req models.CreateUserRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.UserCreatedResponse{UserID: "user-001", Message: "User created successfully"})
	})
	mux.HandleFunc("POST /api/command/users/{id}/deactivate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"user not found"}`))
	})
	mux.HandleFunc("GET /api/users/active", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]models.UserView{
			{UserID: "user-001", Username: "alice", Email: "a@x", Status: models.UserStatusActive},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestShell(t *testing.T, apiURL string) (*shell, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &shell{
		api:            newAPIClient(apiURL),
		deadLetterPath: filepath.Join(t.TempDir(), "deadletter.db"),
		out:            out,
	}, out
}

func TestShellCreateUser(t *testing.T) {
	sh, out := newTestShell(t, newFakeAPI(t).URL)

	assert.False(t, sh.exec("create-user alice alice@example.com"))
	assert.Contains(t, out.String(), "User created successfully id=user-001")
}

func TestShellUsageAndErrors(t *testing.T) {
	sh, out := newTestShell(t, newFakeAPI(t).URL)

	sh.exec("create-user alice")
	assert.Contains(t, out.String(), "usage: create-user <username> <email>")

	out.Reset()
	sh.exec("deactivate missing")
	assert.Contains(t, out.String(), "user not found")

	out.Reset()
	sh.exec("frobnicate")
	assert.Contains(t, out.String(), `unknown command "frobnicate"`)
}

func TestShellListActive(t *testing.T) {
	sh, out := newTestShell(t, newFakeAPI(t).URL)

	sh.exec("active")
	assert.Contains(t, out.String(), "alice")
	assert.Contains(t, out.String(), "ACTIVE")
}

func TestShellHealth(t *testing.T) {
	sh, out := newTestShell(t, newFakeAPI(t).URL)

	sh.exec("health")
	assert.Contains(t, out.String(), "api ok")
}

func TestShellDeadLetters(t *testing.T) {
	sh, out := newTestShell(t, "http://127.0.0.1:0")

	journal, err := deadletter.Open(sh.deadLetterPath)
	require.NoError(t, err)
	require.NoError(t, journal.Abandon(context.Background(), models.NewUserDeactivated("user-009"), 3, errors.New("store down")))

	sh.exec("dead-letters 5")
	assert.Contains(t, out.String(), "(1 total)")
	assert.Contains(t, out.String(), "user-009")
	assert.Contains(t, out.String(), "store down")
}

func TestShellExit(t *testing.T) {
	sh, _ := newTestShell(t, "http://127.0.0.1:0")
	assert.True(t, sh.exec("exit"))
}

func TestCompleteCommand(t *testing.T) {
	assert.Equal(t, []string{"deactivate", "dead-letters"}, completeCommand("dea"))
}

func TestClientTimeoutConfigured(t *testing.T) {
	c := newAPIClient("http://localhost:8080/")
	assert.Equal(t, "http://localhost:8080", c.base)
	assert.Equal(t, 5*time.Second, c.http.Timeout)
}
