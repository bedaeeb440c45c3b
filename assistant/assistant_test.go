package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/plotline-ai/plotline/chunker"
	"github.com/plotline-ai/plotline/classify"
	"github.com/plotline-ai/plotline/embedding"
	"github.com/plotline-ai/plotline/index"
	"github.com/plotline-ai/plotline/log"
	"github.com/plotline-ai/plotline/prompt"
	"github.com/plotline-ai/plotline/property"
	"github.com/plotline-ai/plotline/retrieval"
	"github.com/plotline-ai/plotline/retry"
	"github.com/plotline-ai/plotline/session"
)

// echoModel is a scripted generation service: it answers with the context it
// was given, so tests can check grounding end to end.
type echoModel struct {
	calls int
	err   error
}

func (m *echoModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	human := textOf(messages[len(messages)-1])
	var answer string
	switch {
	case strings.Contains(human, "No listings in the index matched"):
		answer = "I could not find any matching listings for that. Would you like to broaden the search?"
	case strings.Contains(human, "Context:"):
		answer = "Here is what I found:\n" + human
	default:
		answer = "You're welcome! Let me know if you'd like help finding a property."
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: answer}}}, nil
}

func (m *echoModel) Call(ctx context.Context, p string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func textOf(m llms.MessageContent) string {
	var b strings.Builder
	for _, part := range m.Parts {
		if tc, ok := part.(llms.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func fastPolicy() *retry.Policy {
	return &retry.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2.0}
}

func testDataset() []property.Record {
	return []property.Record{
		{
			ID: 0, Location: "DHA Phase 6, Karachi", Price: 15000000, Currency: "PKR",
			Area: 10, AreaUnit: "Marla", Bedrooms: 3, Bathrooms: 3,
			DateAdded: time.Date(2019, 7, 2, 0, 0, 0, 0, time.UTC),
			Agency:    "Prime Estates", Agent: "Ali Raza",
			SourceURL: "https://example.com/listing/1", PropertyType: property.TypeHouse,
		},
		{
			ID: 1, Location: "Gulberg III, Lahore", Price: 9500000, Currency: "PKR",
			Area: 5, AreaUnit: "Marla", Bedrooms: 2, Bathrooms: 2,
			DateAdded: time.Date(2019, 8, 15, 0, 0, 0, 0, time.UTC),
			Agency:    "City Homes", Agent: "Sara Khan",
			SourceURL: "https://example.com/listing/2", PropertyType: property.TypeApartment,
		},
	}
}

// newTestAssistant indexes the dataset into a memory store and wires a full
// pipeline around the echo model.
func newTestAssistant(t *testing.T, model llms.Model) *Assistant {
	t.Helper()
	ctx := context.Background()

	emb := embedding.NewMockEmbedder(256)
	store := index.NewMemoryStore()

	c, err := chunker.New(300, 30)
	require.NoError(t, err)
	ix := index.NewIndexer(store, emb, index.WithLogger(&log.NoOpLogger{}))
	require.NoError(t, ix.Build(ctx, c.Chunk(testDataset())))

	return New(
		model,
		classify.New(model, classify.WithLogger(&log.NoOpLogger{})),
		retrieval.New(store, emb, retrieval.WithK(5), retrieval.WithFloor(0.1), retrieval.WithLogger(&log.NoOpLogger{})),
		prompt.New(),
		WithRetryPolicy(fastPolicy()),
		WithLogger(&log.NoOpLogger{}),
	)
}

func TestHandlePropertySearch(t *testing.T) {
	ctx := context.Background()
	model := &echoModel{}
	a := newTestAssistant(t, model)

	answer := a.Handle(ctx, "Show me 3 bedroom houses in DHA Karachi under 2 crore")

	assert.Equal(t, classify.PropertySearch, answer.Label)
	assert.False(t, answer.Failed)
	require.NotEmpty(t, answer.Sources)
	assert.Contains(t, answer.Sources[0].Entry.Text, "DHA Phase 6, Karachi")
	assert.Contains(t, answer.Text, "DHA Phase 6, Karachi")
	assert.Contains(t, answer.Text, "15000000")

	t.Run("History appended after answer", func(t *testing.T) {
		turns := a.History()
		require.Len(t, turns, 2)
		assert.Equal(t, session.RoleUser, turns[0].Role)
		assert.Equal(t, "Show me 3 bedroom houses in DHA Karachi under 2 crore", turns[0].Content)
		assert.Equal(t, session.RoleAssistant, turns[1].Role)
		assert.False(t, turns[1].Failed)
	})
}

func TestHandleGeneralChat(t *testing.T) {
	ctx := context.Background()
	model := &echoModel{}
	a := newTestAssistant(t, model)

	answer := a.Handle(ctx, "Thank you for your help")

	assert.Equal(t, classify.GeneralChat, answer.Label)
	assert.False(t, answer.Failed)
	assert.Empty(t, answer.Sources, "general chat must skip retrieval")
	assert.NotContains(t, answer.Text, "DHA Phase 6")
	assert.Equal(t, 1, model.calls, "only the generation call; no classifier delegation")
}

func TestHandleNoMatchingListings(t *testing.T) {
	ctx := context.Background()
	model := &echoModel{}

	// Empty index: every property query retrieves nothing.
	emb := embedding.NewMockEmbedder(256)
	store := index.NewMemoryStore()
	a := New(
		model,
		classify.New(model, classify.WithLogger(&log.NoOpLogger{})),
		retrieval.New(store, emb, retrieval.WithLogger(&log.NoOpLogger{})),
		prompt.New(),
		WithRetryPolicy(fastPolicy()),
		WithLogger(&log.NoOpLogger{}),
	)

	answer := a.Handle(ctx, "5 bedroom farmhouse in Quetta")

	assert.Equal(t, classify.PropertySearch, answer.Label)
	assert.False(t, answer.Failed, "no relevant listings is a designed outcome, not a failure")
	assert.Empty(t, answer.Sources)
	assert.Contains(t, answer.Text, "could not find any matching listings")
}

func TestHandleGenerationFailure(t *testing.T) {
	ctx := context.Background()
	model := &echoModel{err: errors.New("500 service unavailable")}
	a := newTestAssistant(t, model)

	answer := a.Handle(ctx, "Show me houses in Karachi")

	assert.True(t, answer.Failed)
	assert.Equal(t, fallbackMessage, answer.Text)
	assert.NotContains(t, answer.Text, "500", "internal detail must not leak")

	t.Run("Transient errors were retried before failing", func(t *testing.T) {
		assert.Equal(t, 3, model.calls)
	})

	t.Run("Failure turn recorded without corrupting history", func(t *testing.T) {
		turns := a.History()
		require.Len(t, turns, 2)
		assert.Equal(t, session.RoleUser, turns[0].Role)
		assert.True(t, turns[1].Failed)
		assert.Equal(t, fallbackMessage, turns[1].Content)
	})

	t.Run("Session recovers on the next query", func(t *testing.T) {
		model.err = nil
		answer := a.Handle(ctx, "Thanks anyway")
		assert.False(t, answer.Failed)
		assert.Len(t, a.History(), 4)
	})
}

func TestHandleSequentialTurns(t *testing.T) {
	ctx := context.Background()
	a := newTestAssistant(t, &echoModel{})

	a.Handle(ctx, "Hello")
	a.Handle(ctx, "Show me apartments in Gulberg Lahore")

	turns := a.History()
	require.Len(t, turns, 4)
	assert.Equal(t, "Hello", turns[0].Content)
	assert.Equal(t, "Show me apartments in Gulberg Lahore", turns[2].Content)
}

func TestSessionIdentity(t *testing.T) {
	a := newTestAssistant(t, &echoModel{})
	b := newTestAssistant(t, &echoModel{})
	assert.NotEqual(t, a.SessionID(), b.SessionID())
	assert.Empty(t, a.History(), "fresh session starts with no turns")
}
