package session

import (
	"strings"

	"docqa/internal/core/memory"

	"github.com/gofiber/fiber/v3"
)

const (
	Header    = "X-Session-ID"
	DefaultID = "default"
	maxIDLen  = 64
)

// Store is the per-session conversation state; *memory.Store satisfies it.
type Store interface {
	Get(sessionID string) *memory.Conversation
	Reset(sessionID string)
}

// ID reads the caller's session from the X-Session-ID header.
func ID(c fiber.Ctx) string {
	id := strings.TrimSpace(c.Get(Header))
	if id == "" {
		return DefaultID
	}
	if len(id) > maxIDLen {
		id = id[:maxIDLen]
	}
	return id
}
