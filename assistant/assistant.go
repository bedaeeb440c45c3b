// Package assistant orchestrates the query pipeline: classification,
// optional retrieval, prompt assembly, and grounded answer generation.
//
// The Assistant is the single point where internal failures are translated
// into one stable user-facing message; underlying causes are logged for
// operators, never shown to users.
package assistant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/plotline-ai/plotline/classify"
	"github.com/plotline-ai/plotline/index"
	"github.com/plotline-ai/plotline/log"
	"github.com/plotline-ai/plotline/prompt"
	"github.com/plotline-ai/plotline/retrieval"
	"github.com/plotline-ai/plotline/retry"
	"github.com/plotline-ai/plotline/session"
)

// State tracks a query through the pipeline.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateClassified       State = "CLASSIFIED"
	StateRetrieved        State = "RETRIEVED"
	StateSkippedRetrieval State = "SKIPPED_RETRIEVAL"
	StatePrompted         State = "PROMPTED"
	StateAnswered         State = "ANSWERED"
	StateFailed           State = "FAILED"
)

// Greeting is the opening assistant message for a new session.
const Greeting = "Hello! I'm your Real Estate Assistant. How can I help you today?"

// fallbackMessage is the one stable user-visible message for any unrecovered
// pipeline failure. Internal error detail never leaks into it.
const fallbackMessage = "I'm sorry, I ran into a problem while processing your request. Please try again."

// Answer is the outcome of handling one query.
type Answer struct {
	Text  string
	Label classify.Label
	// Sources are the retrieved chunks the answer is grounded on; empty for
	// general chat and failed queries.
	Sources []index.SearchResult
	// Failed reports that Text is the fallback message.
	Failed bool
}

// Assistant coordinates one conversation session. Queries are processed
// strictly one at a time per session, since each turn depends on the history
// updated by the previous one.
type Assistant struct {
	model      llms.Model
	classifier *classify.Classifier
	retriever  *retrieval.Retriever
	assembler  *prompt.Assembler

	policy       *retry.Policy
	temperature  float64
	queryTimeout time.Duration
	logger       log.Logger

	mu   sync.Mutex
	conv *session.Conversation
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithRetryPolicy overrides the generation retry policy.
func WithRetryPolicy(policy *retry.Policy) Option {
	return func(a *Assistant) {
		if policy != nil {
			a.policy = policy
		}
	}
}

// WithTemperature sets the generation temperature in [0,1].
func WithTemperature(temperature float64) Option {
	return func(a *Assistant) {
		a.temperature = temperature
	}
}

// WithQueryTimeout bounds how long a single query may take before it is
// failed as stuck. Zero disables the bound.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(a *Assistant) {
		a.queryTimeout = timeout
	}
}

// WithLogger sets the assistant's logger.
func WithLogger(logger log.Logger) Option {
	return func(a *Assistant) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Assistant with a fresh conversation.
func New(model llms.Model, classifier *classify.Classifier, retriever *retrieval.Retriever, assembler *prompt.Assembler, opts ...Option) *Assistant {
	a := &Assistant{
		model:      model,
		classifier: classifier,
		retriever:  retriever,
		assembler:  assembler,
		policy:     retry.DefaultPolicy(),
		logger:     log.GetDefaultLogger(),
		conv:       session.NewConversation(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SessionID returns the session identifier.
func (a *Assistant) SessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.ID()
}

// History returns a copy of the conversation so far.
func (a *Assistant) History() []session.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conv.Turns()
}

// Handle processes one query through the pipeline. On success the user query
// and answer are appended to the history together; on failure the history
// records the query with the fallback message marked failed, leaving prior
// turns untouched. Handle never surfaces internal errors to the caller.
func (a *Assistant) Handle(ctx context.Context, query string) Answer {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.queryTimeout)
		defer cancel()
	}

	state := StateReceived
	a.logger.Debug("session %s: %s", a.conv.ID(), state)
	history := a.conv.Turns()

	label := a.classifier.Classify(ctx, query, history)
	state = StateClassified
	a.logger.Debug("session %s: %s as %s", a.conv.ID(), state, label)

	var result retrieval.Result
	if label == classify.PropertySearch {
		var err error
		result, err = a.retriever.Retrieve(ctx, query)
		if err != nil {
			return a.fail(query, label, "retrieval", err)
		}
		state = StateRetrieved
	} else {
		state = StateSkippedRetrieval
	}
	a.logger.Debug("session %s: %s", a.conv.ID(), state)

	messages := a.assembler.Assemble(query, label, result, history)
	state = StatePrompted
	a.logger.Debug("session %s: %s with %d messages", a.conv.ID(), state, len(messages))

	answer, err := a.generate(ctx, messages)
	if err != nil {
		return a.fail(query, label, "generation", err)
	}
	state = StateAnswered

	a.conv.Append(session.RoleUser, query)
	a.conv.Append(session.RoleAssistant, answer)
	a.logger.Debug("session %s: query reached %s", a.conv.ID(), state)

	return Answer{
		Text:    answer,
		Label:   label,
		Sources: result.Matches,
	}
}

// generate calls the generation service under the retry policy.
func (a *Assistant) generate(ctx context.Context, messages []llms.MessageContent) (string, error) {
	var answer string
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := a.model.GenerateContent(ctx, messages, llms.WithTemperature(a.temperature))
		if err != nil {
			return retry.MarkTransient(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("generation service returned no choices")
		}
		answer = resp.Choices[0].Content
		return nil
	})
	return answer, err
}

// fail transitions the query to FAILED: the cause is logged for operators,
// the user sees only the stable fallback message, and the conversation
// records the failed turn without touching prior turns.
func (a *Assistant) fail(query string, label classify.Label, stage string, err error) Answer {
	a.logger.Error("session %s: %s failed: %v", a.conv.ID(), stage, err)

	a.conv.Append(session.RoleUser, query)
	a.conv.AppendFailed(fallbackMessage)

	return Answer{
		Text:   fallbackMessage,
		Label:  label,
		Failed: true,
	}
}
