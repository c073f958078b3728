package commands

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/colonyops/scmd/internal/backends/hg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hookEnv(endpoint string) func(string) string {
	env := map[string]string{
		hg.EnvHookURL:   endpoint,
		hg.EnvChallenge: "challenge-42",
		hg.EnvToken:     "token-1",
		"HG_NODE":       "abc123",
	}
	return func(k string) string { return env[k] }
}

func TestCallHook_Success(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/hook/hg/r1", r.URL.Path)
		got = r.URL.Query()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	err := callHook(context.Background(), srv.Client(), hookEnv(srv.URL+"/hook/hg/r1"), "pretxnchangegroup", &stderr)
	require.NoError(t, err)

	assert.Equal(t, "challenge-42", got.Get("challenge"))
	assert.Equal(t, "token-1", got.Get("token"))
	assert.Equal(t, "abc123", got.Get("node"))
	assert.Equal(t, "pretxnchangegroup", got.Get("type"))
	assert.Empty(t, stderr.String())
}

func TestCallHook_RejectedRelaysMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("branch main is protected\n\nrejected by policy\n"))
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	err := callHook(context.Background(), srv.Client(), hookEnv(srv.URL), "pretxnchangegroup", &stderr)
	require.ErrorIs(t, err, errHookRejected)
	assert.Equal(t, "branch main is protected\nrejected by policy\n", stderr.String())
}

func TestCallHook_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid hook challenge", http.StatusBadRequest)
	}))
	defer srv.Close()

	var stderr bytes.Buffer
	err := callHook(context.Background(), srv.Client(), hookEnv(srv.URL), "changegroup", &stderr)
	require.Error(t, err)
	assert.NotErrorIs(t, err, errHookRejected)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, stderr.String(), "invalid hook challenge")
}

func TestCallHook_NoEndpointPasses(t *testing.T) {
	err := callHook(context.Background(), http.DefaultClient, hookEnv(""), "changegroup", &bytes.Buffer{})
	assert.NoError(t, err)
}

func TestCallHook_UnknownType(t *testing.T) {
	err := callHook(context.Background(), http.DefaultClient, hookEnv("http://127.0.0.1:1"), "outgoing", &bytes.Buffer{})
	assert.Error(t, err)
}
