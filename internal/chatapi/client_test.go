package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(endpoint string) Options {
	return Options{
		Endpoint:     endpoint,
		ModelName:    "llama3-70b-8192",
		SystemPrompt: "Your expert SQL agent",
	}
}

func TestNewRequest(t *testing.T) {
	req := NewRequest("  show me products  ", testOptions("http://x/chat"))

	raw, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_query":["  show me products  "],"model_name":"llama3-70b-8192","system_prompt":"Your expert SQL agent"}`, string(raw))
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient(Options{})
	assert.Error(t, err)
}

func TestClient_SendPostsRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
		assert.NoError(t, err, "X-Request-ID should be a UUID")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var got Request
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, []string{"list products"}, got.UserQuery)
		assert.Equal(t, "llama3-70b-8192", got.ModelName)
		assert.Equal(t, "Your expert SQL agent", got.SystemPrompt)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"SELECT * FROM products","results":[{"id":1,"name":"Mac"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(testOptions(srv.URL + "/chat"))
	require.NoError(t, err)

	reply, err := c.Send(context.Background(), "list products")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "a send is exactly one request")

	tab, ok := reply.(Tabular)
	require.True(t, ok, "expected Tabular, got %T", reply)
	assert.Equal(t, []string{"id", "name"}, tab.Columns())
	assert.Equal(t, "SELECT * FROM products", tab.Query)
}

func TestClient_SendTextual(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"Hello!"}`))
	}))
	defer srv.Close()

	c, err := NewClient(testOptions(srv.URL))
	require.NoError(t, err)

	reply, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, Textual{Text: "Hello!"}, reply)
}

func TestClient_SendMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	c, err := NewClient(testOptions(srv.URL))
	require.NoError(t, err)

	reply, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	_, ok := reply.(Malformed)
	assert.True(t, ok, "expected Malformed, got %T", reply)
	assert.Equal(t, FailureText, Resolve(reply, err).BotText)
}

func TestClient_SendErrorStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"detail":"boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := NewClient(testOptions(srv.URL))
	require.NoError(t, err)

	reply, err := c.Send(context.Background(), "hi")
	assert.Nil(t, reply)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, int32(1), calls.Load(), "failed sends are not retried")
}

func TestClient_SendConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(testOptions(url))
	require.NoError(t, err)

	_, err = c.Send(context.Background(), "hi")
	assert.True(t, errors.Is(err, ErrRequestFailed))
}

func TestClient_SendTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	opts := testOptions(srv.URL)
	opts.Timeout = 50 * time.Millisecond
	c, err := NewClient(opts)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Send(context.Background(), "hi")
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_SendCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(testOptions(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = c.Send(ctx, "hi")
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_Reconfigure(t *testing.T) {
	var model atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		model.Store(req.ModelName)
		_, _ = w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	c, err := NewClient(testOptions(srv.URL))
	require.NoError(t, err)

	next := testOptions(srv.URL)
	next.ModelName = "gemma-7b-it"
	require.NoError(t, c.Reconfigure(next))
	assert.Equal(t, "gemma-7b-it", c.Options().ModelName)

	_, err = c.Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "gemma-7b-it", model.Load())

	assert.Error(t, c.Reconfigure(Options{}))
	assert.Equal(t, "gemma-7b-it", c.Options().ModelName, "a rejected reconfigure keeps the old settings")
}
