package realtime

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type staticVerifier struct {
	accountID string
}

func (v staticVerifier) VerifyAccount(token string) (string, error) {
	if token != "valid-token" {
		return "", errors.New("invalid token")
	}
	return v.accountID, nil
}

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(hub)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForSessions(t *testing.T, hub *Hub, accountID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.SessionCount(accountID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session count for %s never reached %d", accountID, want)
}

func TestHubDeliversToAuthenticatedSession(t *testing.T) {
	hub := NewHub(staticVerifier{accountID: "acct-1"}, nil)
	conn := dialHub(t, hub)

	if err := conn.WriteJSON(authFrame{Type: "authenticate", Token: "valid-token"}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	waitForSessions(t, hub, "acct-1", 1)

	hub.Publish("acct-1", "chant_recorded", map[string]any{"coins": 5})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "chant_recorded" || got.Data["coins"] != float64(5) {
		t.Fatalf("got %+v", got)
	}
}

func TestHubRejectsInvalidToken(t *testing.T) {
	hub := NewHub(staticVerifier{accountID: "acct-1"}, nil)
	conn := dialHub(t, hub)

	if err := conn.WriteJSON(authFrame{Type: "authenticate", Token: "wrong"}); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after invalid token")
	}
	if hub.SessionCount("acct-1") != 0 {
		t.Fatalf("invalid token must not join a session")
	}
}

func TestHubRequiresAuthenticateFrameFirst(t *testing.T) {
	hub := NewHub(staticVerifier{accountID: "acct-1"}, nil)
	conn := dialHub(t, hub)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"other"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close for non-authenticate first frame")
	}
}

func TestHubPublishWithoutSessions(t *testing.T) {
	hub := NewHub(staticVerifier{accountID: "acct-1"}, nil)
	// Nothing listening; must be a silent no-op.
	hub.Publish("acct-1", "chant_recorded", map[string]any{"coins": 1})
}

func TestHubMultipleSessionsPerAccount(t *testing.T) {
	hub := NewHub(staticVerifier{accountID: "acct-1"}, nil)
	first := dialHub(t, hub)
	second := dialHub(t, hub)

	for _, conn := range []*websocket.Conn{first, second} {
		if err := conn.WriteJSON(authFrame{Type: "authenticate", Token: "valid-token"}); err != nil {
			t.Fatalf("authenticate: %v", err)
		}
	}
	waitForSessions(t, hub, "acct-1", 2)

	hub.Publish("acct-1", "achievements_unlocked", map[string]any{"count": 1})

	for i, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Fatalf("session %d read: %v", i, err)
		}
	}
}
