// internal/registry/session.go
package registry

import (
	"github.com/google/uuid"

	"github.com/jason-s-yu/warhall/internal/transport"
)

// Session is the caller identity resolved by the session layer: the
// authenticated user plus their currently active game client. Registry
// operations reject a nil session as unauthorized.
type Session struct {
	Conn     *transport.Conn
	UserID   uuid.UUID
	UserName string
	ClientID uuid.UUID
}

// NewSession binds an authenticated user to a live connection.
func NewSession(conn *transport.Conn) *Session {
	return &Session{
		Conn:     conn,
		UserID:   conn.UserID,
		UserName: conn.UserName,
		ClientID: conn.ClientID,
	}
}
