// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/warhall/internal/auth"
	"github.com/jason-s-yu/warhall/internal/middleware"
	"github.com/jason-s-yu/warhall/internal/registry"
	"github.com/jason-s-yu/warhall/internal/transport"
	"github.com/jason-s-yu/warhall/internal/wire"
)

// clientPacket is the envelope every websocket command arrives in. Payload
// fields live alongside "type" in the same object, so the raw message is
// handed to the command handler for a second decode.
type clientPacket struct {
	Type string `json:"type"`
}

// LobbyWSHandler upgrades /ws/{clientID} requests and drives the session
// lifecycle: authenticate, register the connection, pump messages, and
// tear everything down on exit.
func LobbyWSHandler(logger *logrus.Logger, reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr
		clientIDStr := strings.TrimPrefix(r.URL.Path, "/ws/")
		clientID, err := uuid.Parse(clientIDStr)
		if err != nil {
			http.Error(w, "invalid client id", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"lobby"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "lobby" {
			c.Close(BadSubprotocolError, "client must speak the lobby subprotocol")
			return
		}

		token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
		identity, err := auth.AuthenticateJWT(token)
		if err != nil {
			logger.Warnf("websocket auth failed from %s: %v", remoteAddr, err)
			c.Close(InvalidAuthTokenError, "invalid auth token")
			return
		}

		conn := transport.NewConn(identity.UserID, identity.UserName, clientID, logger)
		session := registry.NewSession(conn)

		middleware.LogWebSocketConnect(logger, remoteAddr, r.URL.Path)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, c, conn, logger)
		err = readPump(ctx, c, reg, session, logger)

		reg.HandleDisconnect(conn)
		middleware.LogWebSocketDisconnect(logger, remoteAddr, r.URL.Path, err)
	}
}

// readPump decodes client packets and dispatches them through the command
// table. Command errors are reported back on the connection as error
// messages; only transport-level failures end the loop.
func readPump(ctx context.Context, c *websocket.Conn, reg *registry.Registry, s *registry.Session, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.Warnf("ws: non-text message type %d from user %s, ignoring", typ, s.UserName)
			continue
		}

		var packet clientPacket
		if err := json.Unmarshal(msg, &packet); err != nil {
			writeError(s.Conn, wire.BadRequestf("invalid json: %v", err))
			continue
		}

		handler, ok := commandTable[packet.Type]
		if !ok {
			writeError(s.Conn, wire.BadRequestf("unknown command %q", packet.Type))
			continue
		}
		if err := handler(reg, s, msg); err != nil {
			writeError(s.Conn, err)
		}
	}
}

func writeError(conn *transport.Conn, err error) {
	conn.Write(wire.ErrorMessage{
		Type:    wire.MsgError,
		Code:    wire.CodeOf(err),
		Message: err.Error(),
	})
}

// writePump serializes messages from the connection's outbox onto the
// websocket and keeps the connection alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *transport.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.Out:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("ws: failed to marshal outgoing msg for user %s: %v", conn.UserName, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("ws: failed to write to websocket for user %s: %v", conn.UserName, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("ws: ping failed for user %s, assuming disconnect: %v", conn.UserName, err)
				return
			}
		}
	}
}
