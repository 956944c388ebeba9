package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrSessionDeleted is returned when writing to a session that was deleted.
// Deleted session ids are never reused.
var ErrSessionDeleted = errors.New("session deleted")

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// PlaceholderText replaces a message body when the original could not be stored.
const PlaceholderText = "[message could not be stored]"

type Message struct {
	ID        string
	SessionID string
	Sender    Sender
	Text      string
	CreatedAt time.Time
}

type MoodSample struct {
	SessionID string
	Mood      string
	CreatedAt time.Time
}

type Summary struct {
	SessionID string
	Text      string
	CreatedAt time.Time
}

// Fact is a persistent per-session detail such as a person or place the user
// mentioned.
type Fact struct {
	SessionID string
	Category  string
	Value     string
	UpdatedAt time.Time
}

// SessionInfo describes a session for listings.
type SessionInfo struct {
	ID           string
	StartedAt    time.Time
	LastActive   time.Time
	FirstMessage string
	MessageCount int
}
