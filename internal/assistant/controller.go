// Package assistant drives a conversation with the retrieval-augmented
// health assistant.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/healthlib/internal/apperr"
	"github.com/starford/healthlib/internal/events"
	"github.com/starford/healthlib/internal/locale"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/transport"
)

// Recorder persists transcript messages as they are appended.
type Recorder interface {
	AppendMessage(sessionID string, msg models.ChatMessage) error
	SetConversationID(sessionID, conversationID string) error
}

// Snapshot is a copy of the controller state.
type Snapshot struct {
	Transcript     []models.ChatMessage
	PendingInput   string
	Sending        bool
	Suggestions    []models.Suggestion
	ConversationID string
	// Confidence is the backend's rating of the latest reply, empty before the first one.
	Confidence models.Confidence
}

// Controller owns the transcript, which only ever grows.
type Controller struct {
	backend transport.Backend
	tr      locale.Translator
	pub     events.Publisher
	logger  *slog.Logger
	rec     Recorder
	session string

	mu                sync.Mutex
	transcript        []models.ChatMessage
	pending           string
	sending           bool
	suggestions       []models.Suggestion
	suggestionsLoaded bool
	conversationID    string
	confidence        models.Confidence
}

// Option configures a Controller.
type Option func(*Controller)

// WithPublisher sets where state changes are announced.
func WithPublisher(p events.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.pub = p
		}
	}
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder persists every appended message under sessionID.
func WithRecorder(rec Recorder, sessionID string) Option {
	return func(c *Controller) {
		c.rec = rec
		c.session = sessionID
	}
}

// WithHistory resumes an earlier conversation.
func WithHistory(transcript []models.ChatMessage, conversationID string) Option {
	return func(c *Controller) {
		c.transcript = append([]models.ChatMessage(nil), transcript...)
		c.conversationID = conversationID
	}
}

// New creates a Controller.
func New(backend transport.Backend, tr locale.Translator, opts ...Option) *Controller {
	c := &Controller{
		backend: backend,
		tr:      tr,
		pub:     events.Discard,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Transcript:     append([]models.ChatMessage(nil), c.transcript...),
		PendingInput:   c.pending,
		Sending:        c.sending,
		Suggestions:    append([]models.Suggestion(nil), c.suggestions...),
		ConversationID: c.conversationID,
		Confidence:     c.confidence,
	}
}

// SetInput replaces the pending input.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	c.pending = text
	c.mu.Unlock()
}

// Submit sends text to the assistant.
//
// The user message is appended before the request and stays in the transcript
// whatever the outcome. On failure a localized error reply is appended in
// place of the assistant's answer and the transport error is returned.
// Blank text and a send already in flight are rejected without touching state.
func (c *Controller) Submit(ctx context.Context, lang models.Lang, text string) error {
	if strings.TrimSpace(text) == "" {
		return apperr.ErrBlankInput
	}

	c.mu.Lock()
	if c.sending {
		c.mu.Unlock()
		return apperr.ErrBusy
	}
	user := models.ChatMessage{Role: models.RoleUser, Content: text}
	c.transcript = append(c.transcript, user)
	c.pending = ""
	c.sending = true
	history := append([]models.ChatMessage(nil), c.transcript...)
	conversationID := c.conversationID
	c.mu.Unlock()

	c.record(user)
	c.pub.Publish(events.Event{Type: events.ChatMessage, Data: user})
	c.pub.Publish(events.Event{Type: events.ChatSending, Data: true})

	resp, err := c.backend.SendChatMessage(ctx, text, conversationID, history)

	var reply models.ChatMessage
	if err != nil {
		c.logger.Warn("assistant: send failed", slog.String("error", err.Error()))
		reply = models.ChatMessage{Role: models.RoleAssistant, Content: c.tr.T(lang, "chat.error")}
	} else {
		reply = models.ChatMessage{
			Role:      models.RoleAssistant,
			Content:   resp.Message.Content,
			Timestamp: resp.Message.Timestamp,
			Sources:   resp.Sources,
		}
		if len(reply.Sources) == 0 {
			reply.Sources = resp.Message.Sources
		}
		if len(reply.Sources) == 0 {
			reply.Sources = nil
		}
	}

	c.mu.Lock()
	c.transcript = append(c.transcript, reply)
	c.sending = false
	newConversation := false
	if err == nil {
		c.confidence = resp.Confidence
		if resp.ConversationID != "" && resp.ConversationID != c.conversationID {
			c.conversationID = resp.ConversationID
			newConversation = true
		}
	}
	c.mu.Unlock()

	c.record(reply)
	if newConversation && c.rec != nil {
		if recErr := c.rec.SetConversationID(c.session, resp.ConversationID); recErr != nil {
			c.logger.Warn("assistant: record conversation id failed", slog.String("error", recErr.Error()))
		}
	}
	c.pub.Publish(events.Event{Type: events.ChatMessage, Data: reply})
	c.pub.Publish(events.Event{Type: events.ChatSending, Data: false})
	return err
}

// LoadSuggestions fetches the starter questions. Only the first successful
// call reaches the backend.
func (c *Controller) LoadSuggestions(ctx context.Context) error {
	c.mu.Lock()
	loaded := c.suggestionsLoaded
	c.mu.Unlock()
	if loaded {
		return nil
	}

	list, err := c.backend.ListChatSuggestions(ctx)
	if err != nil {
		c.logger.Warn("assistant: load suggestions failed", slog.String("error", err.Error()))
		return err
	}

	c.mu.Lock()
	if !c.suggestionsLoaded {
		c.suggestions = list
		c.suggestionsLoaded = true
	}
	list = append([]models.Suggestion(nil), c.suggestions...)
	c.mu.Unlock()
	c.pub.Publish(events.Event{Type: events.ChatSuggestions, Data: list})
	return nil
}

// UseSuggestion copies the i-th suggestion into the pending input.
func (c *Controller) UseSuggestion(i int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.suggestions) {
		return "", fmt.Errorf("suggestion %d: %w", i, apperr.ErrNotFound)
	}
	c.pending = c.suggestions[i].Question
	return c.pending, nil
}

func (c *Controller) record(msg models.ChatMessage) {
	if c.rec == nil {
		return
	}
	if err := c.rec.AppendMessage(c.session, msg); err != nil {
		c.logger.Warn("assistant: record message failed", slog.String("error", err.Error()))
	}
}
