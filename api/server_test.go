package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvtrace/rvcore-sim/csr"
	"github.com/rvtrace/rvcore-sim/mcm"
	"github.com/rvtrace/rvcore-sim/service"
	"github.com/rvtrace/rvcore-sim/trigger"
)

func newTestServer(t *testing.T) *Server[uint64] {
	t.Helper()
	f := csr.NewFile[uint64]()
	f.Define(csr.NewEntry[uint64](0x300, "mstatus", 0, ^uint64(0)))
	f.Reset()
	eng := trigger.NewEngine(2, 64)
	chk := mcm.NewChecker(1, mcm.Config{})
	ins := service.NewInspector[uint64](0, f, eng, chk)
	return NewServer[uint64]("127.0.0.1:0", ins)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "idle", body["run_state"])
}

func TestCsrsEndpoint(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/api/v1/csrs", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, 200, rec.Code)
	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "mstatus", body[0]["name"])
}

func TestCorsRejectsNonLocalOrigin(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	defer b.Close()
	sub := b.Subscribe([]EventType{EventViolation})
	defer b.Unsubscribe(sub)

	b.BroadcastViolation(map[string]interface{}{"rule": 1})
	select {
	case ev := <-sub.Channel:
		assert.Equal(t, EventViolation, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected event on subscription channel")
	}
}
