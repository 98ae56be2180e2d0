package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"exam-prep-service/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// SessionSocket streams session snapshots to the owner, starting with the
// current one, and applies inbound "action" frames. Closing the socket
// leaves the session in place so the client can reconnect.
func (h *Handler) SessionSocket(c *gin.Context) {
	p := principal(c)
	sessionID := c.Param("id")
	// hijacked connections outlive the request context
	ctx := context.WithoutCancel(c.Request.Context())

	updates, cancel, err := h.svc.Quiz.Subscribe(ctx, p, sessionID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// the server's read and write timeouts stay on the hijacked conn
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		defer close(writerDone)
		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()
		for {
			select {
			case msg, ok := <-send:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					h.log.WithError(err).WithField("session", sessionID).Debug("ws write failed")
					conn.Close()
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "state", Payload: snap}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if inbound.Type != "action" {
			reply(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
			continue
		}
		var action app.Action
		if err := json.Unmarshal(inbound.Payload, &action); err != nil {
			reply(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid action payload"}})
			continue
		}
		if _, err := h.svc.Quiz.Apply(ctx, p, sessionID, action); err != nil {
			msg := err.Error()
			if statusFor(err) == http.StatusInternalServerError {
				h.log.WithError(err).WithField("session", sessionID).Error("ws action failed")
				msg = "internal server error"
			}
			reply(outboundMessage{Type: "error", Payload: errorPayload{Message: msg}})
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
