package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/healthlib/internal/apperr"
	"github.com/starford/healthlib/internal/checksum"
	"github.com/starford/healthlib/internal/models"
)

// reviewSlot is the only draft slot: the collector reviews one item at a time.
const reviewSlot = "review"

// SaveDraft stores p as the item under review, replacing any previous draft.
// Writing an unchanged draft is a no-op.
func (db *DB) SaveDraft(p models.ContentPreview) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("store: marshal draft: %w", err)
	}
	sum := checksum.Sum(payload)

	var current string
	err = db.conn.QueryRow(`SELECT checksum FROM drafts WHERE slot = ?`, reviewSlot).Scan(&current)
	if err == nil && current == sum {
		return nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: read draft checksum: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO drafts (slot, url, payload, checksum, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(slot) DO UPDATE SET
			url        = excluded.url,
			payload    = excluded.payload,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, reviewSlot, p.URL, string(payload), sum)
	if err != nil {
		return fmt.Errorf("store: upsert draft: %w", err)
	}
	return nil
}

// LoadDraft returns the stored item under review or apperr.ErrNotFound.
func (db *DB) LoadDraft() (models.ContentPreview, error) {
	var payload string
	err := db.conn.QueryRow(`SELECT payload FROM drafts WHERE slot = ?`, reviewSlot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ContentPreview{}, apperr.ErrNotFound
	}
	if err != nil {
		return models.ContentPreview{}, fmt.Errorf("store: load draft: %w", err)
	}
	var p models.ContentPreview
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return models.ContentPreview{}, fmt.Errorf("store: decode draft: %w", err)
	}
	return p, nil
}

// DeleteDraft removes the item under review. Deleting a missing draft is not an error.
func (db *DB) DeleteDraft() error {
	if _, err := db.conn.Exec(`DELETE FROM drafts WHERE slot = ?`, reviewSlot); err != nil {
		return fmt.Errorf("store: delete draft: %w", err)
	}
	return nil
}
