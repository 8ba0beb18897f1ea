package loki

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type mockLogger struct {
	mu     sync.Mutex
	errors []string
}

func (m *mockLogger) Error(msg string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func Test_ConfigValidation(t *testing.T) {
	_, err := New(context.Background(), Config{}, &mockLogger{})
	assert.Error(t, err)

	pusher, err := New(context.Background(), Config{Url: "http://localhost:3100/loki/api/v1/push"}, &mockLogger{})
	require.NoError(t, err)
	defer pusher.Stop()

	assert.Equal(t, 1000, pusher.config.BatchMaxSize)
	assert.Equal(t, 5*time.Second, pusher.config.BatchMaxWait)
	assert.Equal(t, map[string]string{}, pusher.config.Labels)
}

func Test_Stop_FlushesBufferedEntries(t *testing.T) {
	var mu sync.Mutex
	var received []pushRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		var req pushRequest
		require.NoError(t, json.NewDecoder(gz).Decode(&req))

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "secret", pass)

		mu.Lock()
		received = append(received, req)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	logger := &mockLogger{}
	pusher, err := New(context.Background(), Config{
		Url:          server.URL,
		BatchMaxWait: time.Hour,
		Labels:       map[string]string{"app": "intake"},
		Username:     "user",
		Password:     "secret",
	}, logger)
	require.NoError(t, err)

	require.NoError(t, pusher.Push(LogEntry{Level: "error", Message: "first"}))
	require.NoError(t, pusher.Push(LogEntry{Level: "info", Message: "second"}))
	pusher.Stop()

	assert.ErrorIs(t, pusher.Push(LogEntry{Message: "late"}), ErrStopped)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "intake", received[0].Streams[0].Stream["app"])
	assert.Len(t, received[0].Streams[0].Values, 2)
	assert.Empty(t, logger.errors)
}
