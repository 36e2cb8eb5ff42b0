package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/covertfs/internal/session"
	"github.com/danmuck/covertfs/internal/testutil/testlog"
)

type fixedStatus session.Status

func (f fixedStatus) Status() session.Status { return session.Status(f) }

func get(t *testing.T, h http.Handler, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionAndReadiness(t *testing.T) {
	testlog.Start(t)
	st := session.Status{Connected: true, Position: 1, Count: 2, Sync: "b3.txt", ChannelLen: 12, Encoding: "structured"}
	h := New("covertctl", fixedStatus(st), nil).Handler()

	rec := get(t, h, "/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session status code=%d", rec.Code)
	}
	var got session.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if got != st {
		t.Fatalf("session got=%+v want=%+v", got, st)
	}

	if rec := get(t, h, "/ready", nil); rec.Code != http.StatusOK {
		t.Fatalf("ready code=%d", rec.Code)
	}
	if rec := get(t, h, "/health", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("health code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestNotReadyBeforeConnect(t *testing.T) {
	testlog.Start(t)
	h := New("covertctl", fixedStatus(session.Status{Position: -1}), nil).Handler()
	if rec := get(t, h, "/ready", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready code=%d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	h := New("covertctl", fixedStatus(session.Status{}), nil).Handler()
	get(t, h, "/health", nil)
	rec := get(t, h, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics code=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "covertfs_") {
		t.Fatalf("metrics body missing covertfs series")
	}
}

func TestCORSOrigins(t *testing.T) {
	testlog.Start(t)
	h := New("covertctl", fixedStatus(session.Status{}), []string{" http://localhost:3000 ", ""}).Handler()
	rec := get(t, h, "/health", map[string]string{"Origin": "http://localhost:3000"})
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("missing CORS header: %v", rec.Header())
	}
}
