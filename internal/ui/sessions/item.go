package sessions

import (
	"strings"
	"time"

	"github.com/fragmede/shelf/internal/api"
	"github.com/fragmede/shelf/internal/render"
)

const maxAgentLength = 60

// SessionItem wraps an active session for the bubbles list.
type SessionItem struct {
	api.ActiveSession
	Current bool
	Now     time.Time
}

func (s SessionItem) Title() string {
	ip := s.IPAddress
	if ip == "" {
		ip = "unknown address"
	}
	if s.Current {
		return ip + " (this device)"
	}
	return ip
}

func (s SessionItem) Description() string {
	parts := make([]string, 0, 2)
	parts = append(parts, "signed in "+render.TimeAgo(s.CreatedAt, s.Now))
	if s.UserAgent != "" {
		parts = append(parts, render.Truncate(s.UserAgent, maxAgentLength))
	} else {
		parts = append(parts, "unknown client")
	}
	return strings.Join(parts, " | ")
}

func (s SessionItem) FilterValue() string {
	return s.IPAddress + " " + s.UserAgent
}
