package frontend

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/un9021/uniset2/directory"
	"github.com/un9021/uniset2/gateway"
	"github.com/un9021/uniset2/heartbeat"
	"github.com/un9021/uniset2/logger"
	"github.com/un9021/uniset2/registry"
	"github.com/un9021/uniset2/sm"
	"github.com/un9021/uniset2/valuecache"
)

func newTestHandler(t *testing.T, maxSessions int) *Handler {
	t.Helper()

	dir, errs := directory.Build(nil, directory.Filter{}, nil, false)
	if len(errs) != 0 {
		t.Fatalf("unexpected directory build errors: %v", errs)
	}
	cache, err := valuecache.New(16)
	if err != nil {
		t.Fatalf("valuecache.New: %v", err)
	}

	smi := sm.NewMock(true)
	beat := heartbeat.New(sm.NoSensor, 0, 0)
	reg := registry.New()
	core := gateway.New(gateway.Config{IsLocalWork: true}, logger.Default(), smi, dir, reg, cache, beat, nil)
	gate := gateway.NewWSGate(core, maxSessions, 4, 16, time.Minute, time.Minute)

	return New(Config{Prefix: "ws"}, gate, logger.Default())
}

func TestUpgradeRejectsAbsentSensorListWith400(t *testing.T) {
	h := newTestHandler(t, 4)
	srv := httptest.NewServer(h.Engine())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/?format=json"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected the handshake to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		status := -1
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("expected HTTP 400 for an absent sensor list, got %d", status)
	}
}

func TestUpgradeRejectsUnknownFormatWith400(t *testing.T) {
	h := newTestHandler(t, 4)
	srv := httptest.NewServer(h.Engine())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/?format=bogus&s=1"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected the handshake to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		status := -1
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("expected HTTP 400 for an unrecognized format, got %d", status)
	}
}

func TestUpgradeRejectsAtCapacityWith503(t *testing.T) {
	h := newTestHandler(t, 1)
	srv := httptest.NewServer(h.Engine())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/?format=json&s=1"

	first, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("expected the first handshake to succeed, got %v", err)
	}
	defer first.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected the second handshake to be rejected at capacity")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		status := -1
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("expected HTTP 503 at capacity, got %d", status)
	}
}

func TestUpgradeSucceedsWithFormatAndSensorList(t *testing.T) {
	h := newTestHandler(t, 4)
	srv := httptest.NewServer(h.Engine())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/?format=json&s=1,2"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("expected the handshake to succeed, got %v (status %v)", err, resp)
	}
	defer conn.Close()

	if h.gate.Count() != 1 {
		t.Fatalf("expected the gate to track 1 session, got %d", h.gate.Count())
	}
}

func TestParseSensorsCSV(t *testing.T) {
	got := parseSensorsCSV("1,2, 3,bad,4")
	want := []int64{1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, v := range want {
		if int64(got[i]) != v {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestParseSensorsCSVEmpty(t *testing.T) {
	if got := parseSensorsCSV(""); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestTestPageHTMLListsFormats(t *testing.T) {
	html := string(testPageHTML("ws"))
	for _, want := range []string{"json", "txt", "raw"} {
		if !containsAll(html, want) {
			t.Fatalf("expected test page to mention %q, got %s", want, html)
		}
	}
}

func containsAll(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}
