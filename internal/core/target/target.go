// Package target resolves delivery endpoints for review comments: remote MCP
// clients, live tmux agent sessions, and the clipboard fallback.
package target

import (
	"encoding/json"
	"time"
)

// Type discriminates delivery target variants.
type Type string

// Delivery target types.
const (
	TypeMcpClient Type = "mcp_client"
	TypeClipboard Type = "clipboard"
)

// ClipboardID is the stable ID of the singleton clipboard target.
const ClipboardID = "clipboard"

// Target is a delivery endpoint. Variants: McpClient, Clipboard.
type Target interface {
	TargetID() string
	TargetType() Type
}

// McpClient is an ephemeral target derived from a registry row inside the
// freshness window.
type McpClient struct {
	ID         string
	Name       string
	WorkingDir string
	LastSeen   time.Time
}

// TargetID returns the target's stable identifier.
func (m McpClient) TargetID() string { return m.ID }

// TargetType returns TypeMcpClient.
func (m McpClient) TargetType() Type { return TypeMcpClient }

// Clipboard is the permanent fallback target. It is a singleton, always
// present and always connected.
type Clipboard struct{}

// TargetID returns ClipboardID.
func (Clipboard) TargetID() string { return ClipboardID }

// TargetType returns TypeClipboard.
func (Clipboard) TargetType() Type { return TypeClipboard }

// wire is the JSON shape shared by all target variants.
type wire struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	Name       string     `json:"name"`
	WorkingDir string     `json:"workingDir,omitempty"`
	Connected  bool       `json:"connected"`
	LastSeen   *time.Time `json:"lastSeen,omitempty"`
}

// MarshalJSON renders the client in the shared target wire shape.
func (m McpClient) MarshalJSON() ([]byte, error) {
	lastSeen := m.LastSeen
	return json.Marshal(wire{
		ID:         m.ID,
		Type:       TypeMcpClient,
		Name:       m.Name,
		WorkingDir: m.WorkingDir,
		Connected:  true,
		LastSeen:   &lastSeen,
	})
}

// MarshalJSON renders the clipboard in the shared target wire shape.
func (Clipboard) MarshalJSON() ([]byte, error) {
	return json.Marshal(wire{
		ID:        ClipboardID,
		Type:      TypeClipboard,
		Name:      "Clipboard",
		Connected: true,
	})
}
