package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/lsocheck/internal/model"
)

// CreateAccessSession grants a pass through the access gate valid for ttl.
func (s *Store) CreateAccessSession(ttl time.Duration) (string, error) {
	token := uuid.NewString()
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO access_sessions (id, created_at, expires_at) VALUES (?, ?, ?)`,
		token, now, now.Add(ttl),
	)
	if err != nil {
		return "", err
	}
	return token, nil
}

// GetAccessSession returns the access session for the given token, or nil if not found/expired.
func (s *Store) GetAccessSession(token string) (*model.AccessSession, error) {
	var sess model.AccessSession
	err := s.db.QueryRow(
		`SELECT id, created_at, expires_at FROM access_sessions WHERE id = ?`, token,
	).Scan(&sess.ID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(sess.ExpiresAt) {
		_ = s.DeleteAccessSession(token)
		return nil, nil
	}
	return &sess, nil
}

// DeleteAccessSession removes an access token.
func (s *Store) DeleteAccessSession(token string) error {
	_, err := s.db.Exec(`DELETE FROM access_sessions WHERE id = ?`, token)
	return err
}

// CleanupExpiredAccessSessions removes all expired access sessions.
func (s *Store) CleanupExpiredAccessSessions() error {
	_, err := s.db.Exec(`DELETE FROM access_sessions WHERE expires_at < ?`, time.Now())
	return err
}
