package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/starford/healthlib/internal/apperr"
	"github.com/starford/healthlib/internal/models"
)

// NewSession starts a new local transcript and returns its id.
func (db *DB) NewSession() (string, error) {
	id := uuid.NewString()
	if _, err := db.conn.Exec(`INSERT INTO sessions (id) VALUES (?)`, id); err != nil {
		return "", fmt.Errorf("store: create session: %w", err)
	}
	return id, nil
}

// LatestSession returns the most recently created session id or apperr.ErrNotFound.
func (db *DB) LatestSession() (string, error) {
	var id string
	err := db.conn.QueryRow(`SELECT id FROM sessions ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: latest session: %w", err)
	}
	return id, nil
}

// AppendMessage adds msg to the end of the session's transcript.
func (db *DB) AppendMessage(sessionID string, msg models.ChatMessage) error {
	sources := msg.Sources
	if sources == nil {
		sources = []models.SourceCitation{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("store: marshal sources: %w", err)
	}
	_, err = db.conn.Exec(`INSERT INTO messages (session_id, role, content, sources, timestamp) VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(msg.Role), msg.Content, string(sourcesJSON), msg.Timestamp)
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// Messages returns the session's transcript in append order.
func (db *DB) Messages(sessionID string) ([]models.ChatMessage, error) {
	rows, err := db.conn.Query(`SELECT role, content, sources, timestamp FROM messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: messages: %w", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var role, content, sourcesJSON, timestamp string
		if err := rows.Scan(&role, &content, &sourcesJSON, &timestamp); err != nil {
			return nil, err
		}
		msg := models.ChatMessage{Role: models.Role(role), Content: content, Timestamp: timestamp}
		if err := json.Unmarshal([]byte(sourcesJSON), &msg.Sources); err != nil {
			return nil, fmt.Errorf("store: decode sources: %w", err)
		}
		if len(msg.Sources) == 0 {
			msg.Sources = nil
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// SetConversationID records the backend conversation id for a session.
func (db *DB) SetConversationID(sessionID, conversationID string) error {
	res, err := db.conn.Exec(`UPDATE sessions SET conversation_id = ? WHERE id = ?`, conversationID, sessionID)
	if err != nil {
		return fmt.Errorf("store: set conversation id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// ConversationID returns the backend conversation id stored for a session.
func (db *DB) ConversationID(sessionID string) (string, error) {
	var id string
	err := db.conn.QueryRow(`SELECT conversation_id FROM sessions WHERE id = ?`, sessionID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: conversation id: %w", err)
	}
	return id, nil
}
