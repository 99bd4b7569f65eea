package feed

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ChartSignal/internal/domain/models"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	all := dial(t, srv, "")
	defer all.Close()
	bob := dial(t, srv, "?user_id=bob")
	defer bob.Close()
	waitFor(t, func() bool { return h.Len() == 2 })

	h.Broadcast(&models.Prediction{ID: "p1", UserID: "alice", Result: models.AnalysisResult{Direction: models.Up}})
	h.Broadcast(&models.Prediction{ID: "p2", UserID: "bob", Result: models.AnalysisResult{Direction: models.Down}})

	_ = all.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m Message
	if err := all.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	if m.Type != "prediction" || m.Data.ID != "p1" {
		t.Errorf("unexpected first frame %+v", m)
	}
	if err := all.ReadJSON(&m); err != nil || m.Data.ID != "p2" {
		t.Errorf("second frame %+v err %v", m, err)
	}

	_ = bob.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := bob.ReadJSON(&m); err != nil {
		t.Fatalf("read bob: %v", err)
	}
	if m.Data.ID != "p2" || m.Data.Result.Direction != models.Down {
		t.Errorf("bob got %+v", m.Data)
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dial(t, srv, "")
	waitFor(t, func() bool { return h.Len() == 1 })
	_ = c.Close()
	waitFor(t, func() bool { return h.Len() == 0 })
}

func TestCloseRejectsNewSubscribers(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := dial(t, srv, "")
	defer c.Close()
	waitFor(t, func() bool { return h.Len() == 1 })
	if err := h.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("expected no subscribers after close")
	}
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := c.ReadMessage(); err == nil {
		t.Errorf("expected closed connection")
	}

	h.Broadcast(&models.Prediction{ID: "x"})
	if h.Len() != 0 {
		t.Errorf("broadcast after close should be a no-op")
	}
}
