package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveMood records a detected mood for the session.
func (s *Store) SaveMood(sessionID, mood string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLive(sessionID); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT INTO mood_checkins (session_id, mood, created_at) VALUES (?, ?, ?)`,
		sessionID, mood, s.now().UTC().UnixMicro())
	if err != nil {
		return fmt.Errorf("saving mood: %w", err)
	}
	return nil
}

// ensureLive returns ErrSessionDeleted for tombstoned sessions. Callers hold s.mu.
func (s *Store) ensureLive(sessionID string) error {
	deleted, err := s.isDeleted(sessionID)
	if err != nil {
		return err
	}
	if deleted {
		return ErrSessionDeleted
	}
	return nil
}

// RecentMoods returns the last n moods of a session, oldest first.
func (s *Store) RecentMoods(sessionID string, n int) ([]MoodSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT mood, created_at FROM (
			SELECT mood, created_at, id FROM mood_checkins
			WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
		) ORDER BY created_at ASC, id ASC`, sessionID, n)
	if err != nil {
		return nil, fmt.Errorf("listing moods: %w", err)
	}
	defer rows.Close()

	var out []MoodSample
	for rows.Next() {
		m := MoodSample{SessionID: sessionID}
		var ts int64
		if err := rows.Scan(&m.Mood, &ts); err != nil {
			return nil, fmt.Errorf("scanning mood: %w", err)
		}
		m.CreatedAt = time.UnixMicro(ts).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) SaveSummary(sessionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO conversation_summaries (session_id, summary, created_at) VALUES (?, ?, ?)`,
		sessionID, text, s.now().UTC().UnixMicro())
	if err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

// LatestSummary returns the newest summary of a session or ErrNotFound.
func (s *Store) LatestSummary(sessionID string) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{SessionID: sessionID}
	var ts int64
	err := s.db.QueryRow(`
		SELECT summary, created_at FROM conversation_summaries
		WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`, sessionID,
	).Scan(&sum.Text, &ts)
	if err == sql.ErrNoRows {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, fmt.Errorf("reading summary: %w", err)
	}
	sum.CreatedAt = time.UnixMicro(ts).UTC()
	return sum, nil
}

// AddFact stores a per-session detail. Re-adding a known value only refreshes
// its timestamp.
func (s *Store) AddFact(sessionID, category, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLive(sessionID); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO user_info (session_id, category, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, category, value) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, category, value, s.now().UTC().UnixMicro())
	if err != nil {
		return fmt.Errorf("saving fact: %w", err)
	}
	return nil
}

// Facts returns all details recorded for a session, oldest first.
func (s *Store) Facts(sessionID string) ([]Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT category, value, updated_at FROM user_info
		WHERE session_id = ? ORDER BY updated_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		f := Fact{SessionID: sessionID}
		var ts int64
		if err := rows.Scan(&f.Category, &f.Value, &ts); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		f.UpdatedAt = time.UnixMicro(ts).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
