package store

import (
	"database/sql"
	"log/slog"
)

const catalogFingerprintKey = "catalog_fingerprint"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// CheckCatalogFingerprint records the fingerprint of the running question
// catalog. It reports whether a different fingerprint was stored before,
// which means older submissions were answered against other questions.
func (s *Store) CheckCatalogFingerprint(fp string) (bool, error) {
	prev, err := s.GetMetadata(catalogFingerprintKey)
	if err != nil {
		return false, err
	}
	if prev == fp {
		return false, nil
	}
	if err := s.SetMetadata(catalogFingerprintKey, fp); err != nil {
		return false, err
	}
	if prev == "" {
		return false, nil
	}
	slog.Warn("question catalog changed since last run", "previous", prev, "current", fp)
	return true, nil
}

// CatalogFingerprint returns the last recorded catalog fingerprint.
func (s *Store) CatalogFingerprint() (string, error) {
	return s.GetMetadata(catalogFingerprintKey)
}
