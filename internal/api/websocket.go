package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/A7-pro/mikerobot/internal/core"
)

const (
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 64
	wsReadLimit  = 64 * 1024
)

type wsInbound struct {
	Text string `json:"text"`
}

type wsOutbound struct {
	Type  string      `json:"type"`
	Event *core.Event `json:"event,omitempty"`
	Error string      `json:"error,omitempty"`
}

type wsClient struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
	done   chan struct{}
}

// push queues a frame without blocking the session. Frames are dropped for a client that stopped reading.
func (c *wsClient) push(out wsOutbound) {
	payload, err := json.Marshal(out)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode websocket frame")
		return
	}
	select {
	case c.send <- payload:
	case <-c.done:
	default:
		log.Warn().Str("user_id", c.userID).Msg("websocket client is slow, dropping frame")
	}
}

// WebSocketHandler streams every message event of the user's session and accepts {"text": ...} frames
// as outgoing messages.
func (h *APIHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{
		conn:   conn,
		userID: user.ID,
		send:   make(chan []byte, wsSendBuffer),
		done:   make(chan struct{}),
	}
	unsubscribe := sess.Subscribe(func(ev core.Event) {
		c.push(wsOutbound{Type: "event", Event: &ev})
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()

	snapshot := core.Event{Kind: core.EventReset, ConversationID: sess.ActiveConversationID(), Messages: sess.Messages()}
	c.push(wsOutbound{Type: "event", Event: &snapshot})

	c.readLoop(r, h, sess)

	unsubscribe()
	close(c.done)
	<-writerDone
	_ = conn.Close()
	log.Debug().Str("user_id", user.ID).Msg("websocket closed")
}

func (c *wsClient) readLoop(r *http.Request, h *APIHandler, sess *core.Session) {
	c.conn.SetReadLimit(wsReadLimit)
	for {
		var in wsInbound
		if err := c.conn.ReadJSON(&in); err != nil {
			return
		}
		if !h.limiter.Allow(c.userID) {
			c.push(wsOutbound{Type: "error", Error: "Too many requests"})
			continue
		}
		if err := sess.Send(r.Context(), in.Text); err != nil {
			c.push(wsOutbound{Type: "error", Error: err.Error()})
		}
	}
}

func (c *wsClient) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				// Unblocks the reader.
				_ = c.conn.Close()
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		}
	}
}
