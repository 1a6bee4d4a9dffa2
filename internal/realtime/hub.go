// Package realtime pushes per-account events over websockets. A connection
// is anonymous until its first frame authenticates it; after that it is
// joined to its account's session set and receives everything published to
// that account.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	authDeadline  = 10 * time.Second
	writeDeadline = 10 * time.Second
	pingEvery     = 30 * time.Second
	sendBuffer    = 16
)

// TokenVerifier resolves a bearer token to an account id.
type TokenVerifier interface {
	VerifyAccount(token string) (string, error)
}

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type authFrame struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type session struct {
	accountID string
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
}

// Hub tracks live sessions keyed by account. Publish never blocks on a slow
// consumer and never returns an error; a session that cannot keep up has its
// oldest-pending frames dropped.
type Hub struct {
	log      *slog.Logger
	verify   TokenVerifier
	upgrader websocket.Upgrader

	mu        sync.RWMutex
	byAccount map[string]map[*session]struct{}
}

func NewHub(verify TokenVerifier, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:    logger,
		verify: verify,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		byAccount: make(map[string]map[*session]struct{}),
	}
}

// ServeHTTP upgrades the connection, waits for the authenticate frame, and
// runs the session until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(authDeadline))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	var frame authFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type != "authenticate" {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authenticate first"),
			time.Now().Add(writeDeadline))
		conn.Close()
		return
	}
	accountID, err := h.verify.VerifyAccount(frame.Token)
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
			time.Now().Add(writeDeadline))
		conn.Close()
		return
	}

	s := &session{
		accountID: accountID,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
	}
	h.join(s)
	h.log.Info("websocket session joined", "account_id", accountID)

	go h.writePump(s)
	h.readPump(s)
}

// Publish sends the event to every live session of the account. No sessions
// means the event is simply dropped.
func (h *Hub) Publish(accountID, eventType string, payload any) {
	msg, err := json.Marshal(envelope{Type: eventType, Data: payload})
	if err != nil {
		h.log.Error("event marshal failed", "type", eventType, "err", err)
		return
	}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.byAccount[accountID]))
	for s := range h.byAccount[accountID] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.send <- msg:
		default:
			select {
			case <-s.send:
			default:
			}
			select {
			case s.send <- msg:
			default:
			}
		}
	}
}

// SessionCount reports live sessions for the account.
func (h *Hub) SessionCount(accountID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byAccount[accountID])
}

func (h *Hub) join(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byAccount[s.accountID]
	if !ok {
		set = make(map[*session]struct{})
		h.byAccount[s.accountID] = set
	}
	set[s] = struct{}{}
}

func (h *Hub) leave(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.byAccount[s.accountID]
	if !ok {
		return
	}
	if _, live := set[s]; !live {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.byAccount, s.accountID)
	}
	close(s.done)
}

func (h *Hub) readPump(s *session) {
	defer func() {
		h.leave(s)
		s.conn.Close()
	}()
	s.conn.SetReadLimit(1024)
	s.conn.SetReadDeadline(time.Now().Add(2 * pingEvery))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(2 * pingEvery))
		return nil
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *session) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case <-s.done:
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeDeadline))
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
