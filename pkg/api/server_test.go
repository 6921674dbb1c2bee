package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/replaykit/pkg/engine"
)

type fixedStatus []ReplayStatus

func (f fixedStatus) Status() []ReplayStatus { return f }

func setupTestServer(t *testing.T, status StatusSource) (*Server, *Metrics) {
	t.Helper()
	m, reg := newTestMetrics(t)
	return NewServer(ServerConfig{Addr: "127.0.0.1:0"}, reg, m, status, nil), m
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _ := setupTestServer(t, nil)
	rec := get(t, s.Handler(), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestServer_Metrics(t *testing.T) {
	s, m := setupTestServer(t, nil)
	m.Observer("match1").MessageApplied(engine.KindPacketEntities, time.Millisecond, nil)

	rec := get(t, s.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `replaykit_messages_total{kind="packet_entities",status="success"} 1`)
}

func TestServer_Replays(t *testing.T) {
	status := fixedStatus{
		{Name: "match1", Tick: 100, Messages: 10, Entities: 4},
		{Name: "match2", Done: true, Error: "truncated"},
	}
	s, _ := setupTestServer(t, status)

	t.Run("list", func(t *testing.T) {
		rec := get(t, s.Handler(), "/api/v1/replays")
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Success bool           `json:"success"`
			Data    []ReplayStatus `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []ReplayStatus(status), resp.Data)
	})

	t.Run("one", func(t *testing.T) {
		rec := get(t, s.Handler(), "/api/v1/replays/match2")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"error":"truncated"`)
	})

	t.Run("missing", func(t *testing.T) {
		rec := get(t, s.Handler(), "/api/v1/replays/nope")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("no status source", func(t *testing.T) {
		empty, _ := setupTestServer(t, nil)
		rec := get(t, empty.Handler(), "/api/v1/replays")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"data":[]`)
	})
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s, _ := setupTestServer(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(body), `"status":"ok"`))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
