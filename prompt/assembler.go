// Package prompt assembles grounded generation prompts from retrieved
// listing chunks and conversation history.
package prompt

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/plotline-ai/plotline/classify"
	"github.com/plotline-ai/plotline/retrieval"
	"github.com/plotline-ai/plotline/session"
)

// propertySystemPrompt constrains the assistant to the retrieved context for
// property queries. The formatting rules mirror the dataset's fields.
const propertySystemPrompt = `You are a helpful real estate assistant. Use ONLY the provided property listings context to answer questions about properties. Never invent listings or details that are not in the context.

Format your response as follows:
- For each property, include: Location, Price, Area, Bedrooms, Bathrooms, Date Added, Agency, Agent, and Page URL if available
- Use clear formatting with bullet points or numbered lists
- If no properties in the context match the criteria, say that no matching listings were found and suggest similar alternatives from the context if any exist
- Be helpful and conversational`

// generalSystemPrompt is the persona for non-property turns.
const generalSystemPrompt = `You are a friendly and helpful Real Estate Assistant. The user is having a general conversation with you. Respond in a conversational, helpful manner. Keep it brief and friendly. If appropriate, you can mention that you're here to help with property searches, but don't force it.`

// noContextNote is injected when retrieval found nothing relevant, so the
// model states the absence honestly instead of fabricating a listing.
const noContextNote = "No listings in the index matched this query. Tell the user that no matching listings were found."

// Assembler builds prompts with bounded context and history.
type Assembler struct {
	maxContextChars int
	maxHistoryTurns int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithMaxContextChars bounds the combined retrieved-chunk text length.
func WithMaxContextChars(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.maxContextChars = n
		}
	}
}

// WithMaxHistoryTurns bounds how many recent turns are included.
func WithMaxHistoryTurns(n int) Option {
	return func(a *Assembler) {
		if n >= 0 {
			a.maxHistoryTurns = n
		}
	}
}

// New creates an Assembler. Defaults: 8000 context chars, 10 history turns.
func New(opts ...Option) *Assembler {
	a := &Assembler{
		maxContextChars: 8000,
		maxHistoryTurns: 10,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the message sequence for the generation service.
// Deterministic for identical inputs. For GeneralChat the retrieval result
// is ignored entirely.
func (a *Assembler) Assemble(query string, label classify.Label, result retrieval.Result, history []session.Turn) []llms.MessageContent {
	var messages []llms.MessageContent

	if label == classify.GeneralChat {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, generalSystemPrompt))
		messages = append(messages, a.historyMessages(history)...)
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, query))
		return messages
	}

	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, propertySystemPrompt))
	messages = append(messages, a.historyMessages(history)...)

	contextBlock := a.buildContext(result)
	human := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextBlock, query)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, human))
	return messages
}

// buildContext renders retrieved chunks in descending-similarity order,
// dropping the lowest-similarity chunks first once the combined chunk text
// would exceed the budget.
func (a *Assembler) buildContext(result retrieval.Result) string {
	if result.Empty() {
		return noContextNote
	}

	var parts []string
	used := 0
	for i, match := range result.Matches {
		if used+len(match.Entry.Text) > a.maxContextChars {
			break
		}
		used += len(match.Entry.Text)
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, match.Entry.Text))
	}

	if len(parts) == 0 {
		return noContextNote
	}
	return strings.Join(parts, "\n")
}

// historyMessages converts the most recent turns into chat messages, oldest
// first. Failed turns are carried too; the model should see what the user
// already got as an apology.
func (a *Assembler) historyMessages(history []session.Turn) []llms.MessageContent {
	if a.maxHistoryTurns == 0 || len(history) == 0 {
		return nil
	}
	start := max(len(history)-a.maxHistoryTurns, 0)

	messages := make([]llms.MessageContent, 0, len(history)-start)
	for _, turn := range history[start:] {
		role := llms.ChatMessageTypeHuman
		if turn.Role == session.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	return messages
}
