package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	oldURL := baseURL
	t.Cleanup(func() {
		baseURL = oldURL
		client, topic, initialized = nil, "", false
	})
}

func TestSendWithoutInit(t *testing.T) {
	reset(t)
	Init("")
	assert.False(t, Enabled())
	assert.Error(t, Send("title", "message"))
}

func TestSendPostsJSON(t *testing.T) {
	reset(t)

	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	baseURL = srv.URL

	Init("reef-alerts")
	require.True(t, Enabled())
	require.NoError(t, Send("Ato", "failed safe"))

	assert.Equal(t, "reef-alerts", got["topic"])
	assert.Equal(t, "Ato", got["title"])
	assert.Equal(t, "failed safe", got["message"])
}

func TestSendNonSuccessStatus(t *testing.T) {
	reset(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	baseURL = srv.URL

	Init("reef-alerts")
	err := Send("Ato", "failed safe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
