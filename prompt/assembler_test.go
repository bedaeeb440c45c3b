package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/plotline-ai/plotline/classify"
	"github.com/plotline-ai/plotline/index"
	"github.com/plotline-ai/plotline/retrieval"
	"github.com/plotline-ai/plotline/session"
)

func match(text string, score float64, pos int) index.SearchResult {
	return index.SearchResult{
		Entry: index.Entry{Hash: text, Text: text, Position: pos},
		Score: score,
	}
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

func combinedChunkText(messages []llms.MessageContent) string {
	// The human message carries the context block.
	return textOf(messages[len(messages)-1])
}

func TestAssembleProperty(t *testing.T) {
	a := New()
	result := retrieval.Result{Matches: []index.SearchResult{
		match("Location: DHA Karachi | Bedrooms: 3", 0.9, 0),
		match("Location: Gulberg Lahore | Bedrooms: 2", 0.7, 1),
	}}

	messages := a.Assemble("3 bedroom in DHA", classify.PropertySearch, result, nil)
	require.GreaterOrEqual(t, len(messages), 2)

	t.Run("System instruction constrains to context", func(t *testing.T) {
		assert.Equal(t, llms.ChatMessageTypeSystem, messages[0].Role)
		assert.Contains(t, textOf(messages[0]), "ONLY the provided property listings context")
	})

	t.Run("Chunks appear in descending similarity order", func(t *testing.T) {
		human := textOf(messages[len(messages)-1])
		i := strings.Index(human, "DHA Karachi")
		j := strings.Index(human, "Gulberg Lahore")
		require.GreaterOrEqual(t, i, 0)
		require.GreaterOrEqual(t, j, 0)
		assert.Less(t, i, j)
		assert.Contains(t, human, "Question: 3 bedroom in DHA")
	})

	t.Run("Deterministic", func(t *testing.T) {
		again := a.Assemble("3 bedroom in DHA", classify.PropertySearch, result, nil)
		assert.Equal(t, messages, again)
	})
}

func TestAssembleContextBounding(t *testing.T) {
	chunk := strings.Repeat("x", 100)
	var matches []index.SearchResult
	for i := 0; i < 10; i++ {
		matches = append(matches, match(chunk, 1.0-float64(i)*0.05, i))
	}

	a := New(WithMaxContextChars(350))
	messages := a.Assemble("query", classify.PropertySearch, retrieval.Result{Matches: matches}, nil)
	human := combinedChunkText(messages)

	// Only 3 chunks of 100 chars fit in 350; the lowest-similarity ones drop.
	assert.Equal(t, 3, strings.Count(human, chunk))
	assert.Contains(t, human, "[1]")
	assert.Contains(t, human, "[3]")
	assert.NotContains(t, human, "[4]")
}

func TestAssembleEmptyRetrieval(t *testing.T) {
	a := New()
	messages := a.Assemble("houses on the moon", classify.PropertySearch, retrieval.Result{}, nil)
	human := textOf(messages[len(messages)-1])
	assert.Contains(t, human, "no matching listings were found")
}

func TestAssembleGeneralChat(t *testing.T) {
	a := New()
	// Even with retrieval results present, general chat must omit them.
	result := retrieval.Result{Matches: []index.SearchResult{match("Location: DHA", 0.9, 0)}}
	messages := a.Assemble("thank you!", classify.GeneralChat, result, nil)

	assert.Contains(t, textOf(messages[0]), "friendly and helpful Real Estate Assistant")
	for _, m := range messages {
		assert.NotContains(t, textOf(m), "Location: DHA")
	}
	assert.Equal(t, "thank you!", textOf(messages[len(messages)-1]))
}

func TestAssembleHistoryBounding(t *testing.T) {
	a := New(WithMaxHistoryTurns(2))
	history := []session.Turn{
		{Role: session.RoleUser, Content: "oldest question"},
		{Role: session.RoleAssistant, Content: "oldest answer"},
		{Role: session.RoleUser, Content: "newest question"},
		{Role: session.RoleAssistant, Content: "newest answer"},
	}

	messages := a.Assemble("hi", classify.GeneralChat, retrieval.Result{}, history)

	var all strings.Builder
	for _, m := range messages {
		all.WriteString(textOf(m))
	}
	assert.NotContains(t, all.String(), "oldest question")
	assert.Contains(t, all.String(), "newest question")
	assert.Contains(t, all.String(), "newest answer")

	t.Run("History roles map to chat roles", func(t *testing.T) {
		require.Len(t, messages, 4) // system + 2 history + query
		assert.Equal(t, llms.ChatMessageTypeHuman, messages[1].Role)
		assert.Equal(t, llms.ChatMessageTypeAI, messages[2].Role)
	})
}
