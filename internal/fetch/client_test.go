package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGet(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "ollamon-test", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c := New(Options{Timeout: time.Second, UserAgent: "ollamon-test"})
	resp, err := c.Get(context.Background(), ts.URL, http.Header{"Accept": []string{"application/json"}})
	require.NoError(t, err)

	var body struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, resp.DecodeJSON(&body))
	assert.True(t, body.OK)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestClientExplicitUserAgentWins(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
	}))
	defer ts.Close()

	c := New(Options{UserAgent: "default-agent"})
	resp, err := c.Get(context.Background(), ts.URL, http.Header{"User-Agent": []string{"browser"}})
	require.NoError(t, err)
	assert.Equal(t, "browser", string(resp.Body))
}

func TestClientTimeoutCancelsTransport(t *testing.T) {
	serverSawCancel := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(serverSawCancel)
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	c := New(Options{Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := c.Get(context.Background(), ts.URL, nil)

	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected timeout, got %v", err)
	assert.Equal(t, KindTimeout, Classify(err))
	assert.Less(t, time.Since(start), 2*time.Second)

	select {
	case <-serverSawCancel:
	case <-time.After(2 * time.Second):
		t.Fatal("server never observed the cancelled request")
	}
}

func TestClientHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 2048), http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := New(Options{Timeout: time.Second})
	_, err := c.Get(context.Background(), ts.URL, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.LessOrEqual(t, len(httpErr.Body), maxErrorBody)
	assert.Equal(t, KindHTTP, Classify(err))
}

func TestClientNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	c := New(Options{Timeout: time.Second})
	_, err := c.Get(context.Background(), url, nil)

	require.Error(t, err)
	assert.Equal(t, KindNetwork, Classify(err))
}

func TestClientBodyLimit(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("a", 100)))
	}))
	defer ts.Close()

	c := New(Options{MaxBodyBytes: 10})
	resp, err := c.Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 10)
}

func TestClientPostJSONAndParseError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"model":"llama3"}`, string(body))
		_, _ = w.Write([]byte("not json"))
	}))
	defer ts.Close()

	c := New(Options{})
	resp, err := c.PostJSON(context.Background(), ts.URL, map[string]string{"model": "llama3"})
	require.NoError(t, err)

	var v map[string]any
	err = resp.DecodeJSON(&v)
	require.Error(t, err)
	assert.Equal(t, KindParse, Classify(err))
}

func TestClientOpenStreamsAndReleases(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("line1\nline2\n"))
	}))
	defer ts.Close()

	c := New(Options{Timeout: time.Second})
	body, err := c.OpenJSON(context.Background(), ts.URL, map[string]bool{"stream": true})
	require.NoError(t, err)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\n", string(data))
	require.NoError(t, body.Close())
}

func TestClientOpenHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(Options{Timeout: time.Second})
	req, err := http.NewRequest(http.MethodGet, ts.URL, http.NoBody)
	require.NoError(t, err)

	_, err = c.Open(context.Background(), req)
	assert.Equal(t, KindHTTP, Classify(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindNone},
		{name: "timeout", err: &TimeoutError{URL: "u"}, want: KindTimeout},
		{name: "network", err: &NetworkError{URL: "u", Err: errors.New("refused")}, want: KindNetwork},
		{name: "canceled", err: &NetworkError{URL: "u", Err: context.Canceled}, want: KindCanceled},
		{name: "http", err: &HTTPError{URL: "u", StatusCode: 500}, want: KindHTTP},
		{name: "parse", err: &ParseError{URL: "u", Format: "json", Err: errors.New("eof")}, want: KindParse},
		{name: "unknown", err: errors.New("boom"), want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
