// Package classify routes incoming queries between property search and
// ordinary conversation.
//
// Classification is two-staged: a lexical check against real-estate signal
// terms and conversational patterns resolves the clear cases without any
// model call; only ambiguous queries are delegated to the generation service
// with a constrained one-word prompt. The classifier is a pure function of
// (query, history) with no hidden state.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/plotline-ai/plotline/log"
	"github.com/plotline-ai/plotline/session"
)

// Label is the tagged classification result. Produced fresh per query,
// never persisted.
type Label string

const (
	// PropertySearch routes the query through retrieval.
	PropertySearch Label = "PROPERTY_SEARCH"
	// GeneralChat skips retrieval entirely.
	GeneralChat Label = "GENERAL_CHAT"
)

// Real-estate domain signal terms: any hit strongly suggests a property
// query. Matched case-insensitively on word boundaries.
var signalTerms = []string{
	// structure and rooms
	"house", "houses", "apartment", "apartments", "flat", "flats", "plot",
	"plots", "property", "properties", "listing", "listings", "bedroom",
	"bedrooms", "bed", "bath", "baths", "bathroom", "bathrooms", "portion",
	"farmhouse", "office", "shop",
	// money and size
	"price", "prices", "rent", "buy", "sale", "lakh", "crore", "pkr",
	"marla", "kanal", "sq", "sqft", "square",
	// locations in the dataset
	"karachi", "lahore", "islamabad", "rawalpindi", "faisalabad", "dha",
	"bahria", "gulberg", "clifton", "johar", "cantt", "f-7", "f-8", "e-11",
}

// Conversational patterns: greetings, thanks, meta-questions about the
// assistant. A query matching one of these and carrying no signal terms is
// general chat.
var chatPatterns = []string{
	"hello", "hi", "hey", "salam", "assalam", "good morning", "good evening",
	"good afternoon", "thanks", "thank you", "bye", "goodbye", "how are you",
	"who are you", "what's your name", "what is your name", "what can you do",
	"help", "ok", "okay", "great", "nice",
}

const classifierPrompt = `Analyze the following user query and determine if it's related to real estate/property search or general conversation.

User Query: "%s"

Respond with ONLY one word:
- "PROPERTY" if the query is about searching, finding, or asking about real estate, houses, apartments, properties, locations, prices, rooms, etc.
- "GENERAL" if the query is a greeting, general conversation, personal question, or not related to real estate.

Examples:
- "hi how are you" -> GENERAL
- "hello" -> GENERAL
- "what's your name" -> GENERAL
- "show me houses in karachi" -> PROPERTY
- "find 3 bedroom apartment" -> PROPERTY
- "properties under 50 lakh" -> PROPERTY
- "thanks" -> GENERAL

Classification:`

// Classifier labels queries.
type Classifier struct {
	model  llms.Model
	logger log.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the classifier's logger.
func WithLogger(logger log.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Classifier that uses model for ambiguous queries. A nil
// model disables the delegation stage; ambiguous queries then default to
// PropertySearch.
func New(model llms.Model, opts ...Option) *Classifier {
	c := &Classifier{model: model, logger: log.GetDefaultLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify labels query. Lexically clear cases never call the model; on any
// model failure or malformed output the label defaults to PropertySearch,
// which degrades gracefully to a "no match" answer rather than silently
// skipping relevant listings.
func (c *Classifier) Classify(ctx context.Context, query string, history []session.Turn) Label {
	hasSignal := containsSignalTerm(query)
	isChat := matchesChatPattern(query)

	switch {
	case hasSignal:
		return PropertySearch
	case isChat:
		return GeneralChat
	}

	return c.delegate(ctx, query, history)
}

// delegate asks the generation service for a one-word label.
func (c *Classifier) delegate(ctx context.Context, query string, history []session.Turn) Label {
	if c.model == nil {
		return PropertySearch
	}

	prompt := fmt.Sprintf(classifierPrompt, query)
	if len(history) > 0 {
		var b strings.Builder
		b.WriteString("Recent conversation:\n")
		for _, t := range history {
			fmt.Fprintf(&b, "%s: %s\n", t.Role, t.Content)
		}
		b.WriteString("\n")
		prompt = b.String() + prompt
	}

	resp, err := c.model.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		llms.WithTemperature(0),
		llms.WithMaxTokens(4),
	)
	if err != nil {
		c.logger.Warn("classifier delegation failed, defaulting to property search: %v", err)
		return PropertySearch
	}
	if len(resp.Choices) == 0 {
		return PropertySearch
	}

	return parseLabel(resp.Choices[0].Content)
}

// parseLabel maps the model's single-token answer onto a Label, defaulting
// to PropertySearch for anything malformed.
func parseLabel(raw string) Label {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "GENERAL":
		return GeneralChat
	case "PROPERTY":
		return PropertySearch
	default:
		return PropertySearch
	}
}

func containsSignalTerm(query string) bool {
	words := tokenize(query)
	for _, w := range words {
		for _, term := range signalTerms {
			if w == term {
				return true
			}
		}
	}
	return false
}

func matchesChatPattern(query string) bool {
	normalized := strings.Join(tokenize(query), " ")
	if normalized == "" {
		return false
	}
	for _, pattern := range chatPatterns {
		if normalized == pattern || strings.HasPrefix(normalized, pattern+" ") ||
			strings.HasSuffix(normalized, " "+pattern) {
			return true
		}
	}
	return false
}

func tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '-' || r == '\'')
	})
}
