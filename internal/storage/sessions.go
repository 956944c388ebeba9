package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// legacyMessageID matches ids of the form "{epoch_ms}_{sender}" issued by
// older clients that never saw real message ids. Those clients called the
// assistant "krishna".
var legacyMessageID = regexp.MustCompile(`^(\d+)_(user|assistant|krishna)$`)

func legacySender(s string) Sender {
	if s == "krishna" {
		return SenderAssistant
	}
	return Sender(s)
}

// CreateSession records a new session and returns its id.
func (s *Store) CreateSession() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	_, err := s.db.Exec(`INSERT INTO sessions (id, created_at) VALUES (?, ?)`,
		id, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return id, nil
}

// IsDeleted reports whether the session carries a deletion tombstone.
func (s *Store) IsDeleted(sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isDeleted(sessionID)
}

func (s *Store) isDeleted(sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM deleted_sessions WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking tombstone for %s: %w", sessionID, err)
	}
	return n > 0, nil
}

// AppendMessage stores a message at the end of the session's log. A session
// row is created on first use. If the write fails, one more attempt is made
// with PlaceholderText so the turn is not silently lost.
func (s *Store) AppendMessage(sessionID string, sender Sender, text string) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.isDeleted(sessionID)
	if err != nil {
		return Message{}, err
	}
	if deleted {
		return Message{}, ErrSessionDeleted
	}

	m, err := s.insertMessage(sessionID, sender, text)
	if err == nil {
		return m, nil
	}

	slog.Warn("storing message failed, retrying with placeholder", "session_id", sessionID, "error", err)
	m, retryErr := s.insertMessage(sessionID, sender, PlaceholderText)
	if retryErr != nil {
		return Message{}, fmt.Errorf("appending message: %w", errors.Join(err, retryErr))
	}
	return m, nil
}

func (s *Store) insertMessage(sessionID string, sender Sender, text string) (Message, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return Message{}, fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.now().UTC()
	if _, err := tx.Exec(`INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`,
		sessionID, now.Format(time.RFC3339)); err != nil {
		return Message{}, fmt.Errorf("ensuring session row: %w", err)
	}

	var last sql.NullInt64
	if err := tx.QueryRow(`SELECT MAX(created_at) FROM conversations WHERE session_id = ?`, sessionID).Scan(&last); err != nil {
		return Message{}, fmt.Errorf("reading last timestamp: %w", err)
	}
	ts := now.UnixMicro()
	if last.Valid && last.Int64 > ts {
		ts = last.Int64
	}

	m := Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Sender:    sender,
		Text:      text,
		CreatedAt: time.UnixMicro(ts).UTC(),
	}
	if _, err := tx.Exec(`INSERT INTO conversations (id, session_id, sender, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, string(m.Sender), m.Text, ts); err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("committing message: %w", err)
	}
	return m, nil
}

// ListMessages returns the last limit messages of a session in chronological
// order. A non-positive limit returns the whole session.
func (s *Store) ListMessages(sessionID string, limit int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT id, session_id, sender, message, created_at FROM (
			SELECT id, session_id, sender, message, created_at, rowid AS seq
			FROM conversations WHERE session_id = ?
			ORDER BY created_at DESC, seq DESC LIMIT ?
		) ORDER BY created_at ASC, seq ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		var m Message
		var sender string
		var ts int64
		if err := rows.Scan(&m.ID, &m.SessionID, &sender, &m.Text, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Sender = Sender(sender)
		m.CreatedAt = time.UnixMicro(ts).UTC()
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// FirstMessages returns up to n of the earliest messages of a session.
func (s *Store) FirstMessages(sessionID string, n int) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, session_id, sender, message, created_at FROM conversations
		WHERE session_id = ? ORDER BY created_at ASC, rowid ASC LIMIT ?`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("listing first messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// DeleteSession removes every row belonging to the session and records a
// tombstone so the id is never written to again.
func (s *Store) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM conversations WHERE session_id = ?`,
		`DELETE FROM mood_checkins WHERE session_id = ?`,
		`DELETE FROM conversation_summaries WHERE session_id = ?`,
		`DELETE FROM user_info WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, sessionID); err != nil {
			return fmt.Errorf("deleting session %s: %w", sessionID, err)
		}
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO deleted_sessions (session_id, deleted_at) VALUES (?, ?)`,
		sessionID, s.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("recording tombstone: %w", err)
	}
	return tx.Commit()
}

// DeleteMessage removes a single message. Ids shaped like "{epoch_ms}_{sender}"
// are resolved to the earliest message from that sender stored within the
// same second. It reports whether a row was removed.
func (s *Store) DeleteMessage(sessionID, messageID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m := legacyMessageID.FindStringSubmatch(messageID); m != nil {
		epochMS, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return false, fmt.Errorf("parsing legacy message id %q: %w", messageID, err)
		}
		start := (epochMS / 1000) * int64(time.Second/time.Microsecond)
		end := start + int64(time.Second/time.Microsecond)

		var id string
		err = s.db.QueryRow(`
			SELECT id FROM conversations
			WHERE session_id = ? AND sender = ? AND created_at >= ? AND created_at < ?
			ORDER BY created_at ASC, rowid ASC LIMIT 1`,
			sessionID, string(legacySender(m[2])), start, end).Scan(&id)
		if err == sql.ErrNoRows {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("resolving legacy message id: %w", err)
		}
		messageID = id
	}

	query := `DELETE FROM conversations WHERE id = ?`
	args := []any{messageID}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return false, fmt.Errorf("deleting message %s: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Wipe tombstones every known session, clears every other partition and
// compacts the database file.
func (s *Store) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning wipe transaction: %w", err)
	}
	defer tx.Rollback()

	deletedAt := s.now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT OR IGNORE INTO deleted_sessions (session_id, deleted_at)
		SELECT id, ? FROM sessions
		UNION SELECT session_id, ? FROM conversations
		UNION SELECT session_id, ? FROM mood_checkins`, deletedAt, deletedAt, deletedAt); err != nil {
		return fmt.Errorf("tombstoning sessions: %w", err)
	}
	for _, table := range []string{"conversations", "mood_checkins", "conversation_summaries", "user_info", "sessions"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing wipe: %w", err)
	}

	if _, err := s.db.Exec("VACUUM"); err != nil {
		slog.Warn("vacuum after wipe failed", "error", err)
	}
	return nil
}

// ListSessions returns every live session that has messages, newest first.
func (s *Store) ListSessions() ([]SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.querySessions(`
		SELECT c.session_id, MIN(c.created_at), MAX(c.created_at), COUNT(*),
			COALESCE((SELECT u.message FROM conversations u
				WHERE u.session_id = c.session_id AND u.sender = 'user'
				ORDER BY u.created_at ASC, u.rowid ASC LIMIT 1), '')
		FROM conversations c
		WHERE c.session_id NOT IN (SELECT session_id FROM deleted_sessions)
		GROUP BY c.session_id
		ORDER BY MIN(c.created_at) DESC`)
}

// RecentSessions returns up to limit live sessions other than excludeID with
// activity after since, most recently active first.
func (s *Store) RecentSessions(excludeID string, since time.Time, limit int) ([]SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	return s.querySessions(`
		SELECT c.session_id, MIN(c.created_at), MAX(c.created_at), COUNT(*),
			COALESCE((SELECT u.message FROM conversations u
				WHERE u.session_id = c.session_id AND u.sender = 'user'
				ORDER BY u.created_at ASC, u.rowid ASC LIMIT 1), '')
		FROM conversations c
		WHERE c.session_id != ?
			AND c.session_id NOT IN (SELECT session_id FROM deleted_sessions)
		GROUP BY c.session_id
		HAVING MAX(c.created_at) >= ?
		ORDER BY MAX(c.created_at) DESC
		LIMIT ?`, excludeID, since.UnixMicro(), limit)
}

func (s *Store) querySessions(query string, args ...any) ([]SessionInfo, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var si SessionInfo
		var first, last int64
		if err := rows.Scan(&si.ID, &first, &last, &si.MessageCount, &si.FirstMessage); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		si.StartedAt = time.UnixMicro(first).UTC()
		si.LastActive = time.UnixMicro(last).UTC()
		out = append(out, si)
	}
	return out, rows.Err()
}
