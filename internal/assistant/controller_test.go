package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/healthlib/internal/apperr"
	"github.com/starford/healthlib/internal/locale"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/testutil"
	"github.com/starford/healthlib/internal/transport"
)

func setup(t *testing.T, opts ...Option) (*Controller, *testutil.Backend) {
	t.Helper()
	b := testutil.NewBackend(t)
	client := transport.New(b.URL, transport.WithLogger(testutil.Logger(t)))
	opts = append([]Option{WithLogger(testutil.Logger(t))}, opts...)
	return New(client, locale.MustCatalog(), opts...), b
}

func TestSubmitBlankIsNoop(t *testing.T) {
	c, b := setup(t)
	c.SetInput("draft")

	for _, text := range []string{"", "   ", "\n\t"} {
		err := c.Submit(context.Background(), models.LangZH, text)
		assert.ErrorIs(t, err, apperr.ErrBlankInput)
	}

	s := c.Snapshot()
	assert.Empty(t, s.Transcript)
	assert.Equal(t, "draft", s.PendingInput)
	assert.False(t, s.Sending)
	assert.Equal(t, 0, b.Calls(testutil.RouteChat))
}

func TestSubmitSuccess(t *testing.T) {
	c, b := setup(t)
	c.SetInput("Tell me about heart rate zones")
	text := c.Snapshot().PendingInput

	require.NoError(t, c.Submit(context.Background(), models.LangEN, text))

	s := c.Snapshot()
	require.Len(t, s.Transcript, 2)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: text}, s.Transcript[0])

	reply := s.Transcript[1]
	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Equal(t, "answer: "+text, reply.Content)
	require.Len(t, reply.Sources, 1)
	assert.Equal(t, "Heart rate zones", reply.Sources[0].Title)
	assert.Equal(t, models.TierMedical, reply.Sources[0].Tier)

	assert.Empty(t, s.PendingInput)
	assert.False(t, s.Sending)
	assert.Equal(t, "conv-1", s.ConversationID)
	assert.Equal(t, models.ConfidenceHigh, s.Confidence)

	chats := b.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, text, chats[0].Message)
	assert.Empty(t, chats[0].ConversationID)
	assert.Equal(t, []models.ChatMessage{{Role: models.RoleUser, Content: text}}, chats[0].History,
		"history includes the new user turn")
}

func TestSecondSendCarriesConversation(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()
	require.NoError(t, c.Submit(ctx, models.LangZH, "什么是HRV？"))
	require.NoError(t, c.Submit(ctx, models.LangZH, "如何提高？"))

	chats := b.Chats()
	require.Len(t, chats, 2)
	assert.Equal(t, "conv-1", chats[1].ConversationID)
	require.Len(t, chats[1].History, 3)
	assert.Equal(t, "如何提高？", chats[1].History[2].Content)
	assert.Len(t, c.Snapshot().Transcript, 4)
}

func TestSubmitFailureKeepsUserMessage(t *testing.T) {
	c, b := setup(t)
	b.Fail(testutil.RouteChat)
	text := "  What is a normal resting heart rate?  "

	before := len(c.Snapshot().Transcript)
	err := c.Submit(context.Background(), models.LangZH, text)

	var rf *transport.RequestFailedError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, transport.OpSendChat, rf.Op)

	s := c.Snapshot()
	require.Len(t, s.Transcript, before+2)
	assert.Equal(t, text, s.Transcript[0].Content)
	assert.Equal(t, models.RoleUser, s.Transcript[0].Role)
	assert.Equal(t, models.RoleAssistant, s.Transcript[1].Role)
	assert.Equal(t, "抱歉，遇到错误，请重试。", s.Transcript[1].Content)
	assert.False(t, s.Sending)
	assert.Empty(t, s.ConversationID)

	b.Recover(testutil.RouteChat)
	require.NoError(t, c.Submit(context.Background(), models.LangEN, "retry"))
	assert.Len(t, c.Snapshot().Transcript, before+4)
}

func TestSubmitWhileSendingIsRejected(t *testing.T) {
	c, b := setup(t)
	release := b.Hold(testutil.RouteChat)

	done := make(chan error, 1)
	go func() { done <- c.Submit(context.Background(), models.LangEN, "first") }()
	require.Eventually(t, func() bool { return b.Calls(testutil.RouteChat) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, c.Snapshot().Sending)

	err := c.Submit(context.Background(), models.LangEN, "second")
	assert.ErrorIs(t, err, apperr.ErrBusy)
	assert.Len(t, c.Snapshot().Transcript, 1)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, b.Calls(testutil.RouteChat))
	assert.Len(t, c.Snapshot().Transcript, 2)
}

func TestSuggestionsLoadOnce(t *testing.T) {
	c, b := setup(t)
	ctx := context.Background()

	b.Fail(testutil.RouteSuggestions)
	assert.Error(t, c.LoadSuggestions(ctx))
	assert.Empty(t, c.Snapshot().Suggestions)

	b.Recover(testutil.RouteSuggestions)
	require.NoError(t, c.LoadSuggestions(ctx))
	require.NoError(t, c.LoadSuggestions(ctx))

	assert.Equal(t, 2, b.Calls(testutil.RouteSuggestions))
	assert.Len(t, c.Snapshot().Suggestions, 5)
}

func TestUseSuggestion(t *testing.T) {
	c, _ := setup(t)
	require.NoError(t, c.LoadSuggestions(context.Background()))

	q, err := c.UseSuggestion(2)
	require.NoError(t, err)
	assert.Equal(t, "成年人每天需要多少睡眠？", q)
	assert.Equal(t, q, c.Snapshot().PendingInput)

	_, err = c.UseSuggestion(9)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, q, c.Snapshot().PendingInput)
}

func TestRecorderPersistsTranscript(t *testing.T) {
	db := testutil.TestStore(t)
	sid, err := db.NewSession()
	require.NoError(t, err)

	c, b := setup(t, WithRecorder(db, sid))
	require.NoError(t, c.Submit(context.Background(), models.LangEN, "HRV basics please"))
	b.Fail(testutil.RouteChat)
	_ = c.Submit(context.Background(), models.LangEN, "and sleep?")

	msgs, err := db.Messages(sid)
	require.NoError(t, err)
	assert.Equal(t, c.Snapshot().Transcript, msgs)

	conv, err := db.ConversationID(sid)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv)
}

func TestResumeWithHistory(t *testing.T) {
	prior := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
	}
	c, b := setup(t, WithHistory(prior, "conv-7"))
	require.NoError(t, c.Submit(context.Background(), models.LangEN, "again"))

	chats := b.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "conv-7", chats[0].ConversationID)
	assert.Len(t, chats[0].History, 3)
	assert.Equal(t, "conv-7", c.Snapshot().ConversationID)
}
