// Package inference answers a question over a retrieved chunk set in one of
// two modes: a single-shot fast completion, or per-chunk step-by-step
// reasoning with trace extraction and multi-chunk synthesis.
package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/oylhq/oyl/llm"
	"github.com/oylhq/oyl/retrieval"
)

// Mode selects the answering strategy. Selected per request; no cross-
// request state.
type Mode string

const (
	ModeFast      Mode = "fast"
	ModeReasoning Mode = "reasoning"
)

// ParseMode normalizes a requested mode; anything other than "reasoning"
// maps to fast.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeReasoning)) {
		return ModeReasoning
	}
	return ModeFast
}

// NoAnswer is the fixed response when no chunk yields an answer.
const NoAnswer = "No relevant information found in the knowledge base."

// Result is the two-shaped inference outcome; consumers type-switch on
// *Fast and *Reasoning.
type Result interface {
	FinalAnswer() string
	ModelUsed() string
	ElapsedSeconds() float64
}

// Fast is the single-completion result: no reasoning trace.
type Fast struct {
	Answer  string
	Model   string
	Elapsed float64
}

func (f *Fast) FinalAnswer() string     { return f.Answer }
func (f *Fast) ModelUsed() string       { return f.Model }
func (f *Fast) ElapsedSeconds() float64 { return f.Elapsed }

// Reasoning carries the answer plus the ordered reasoning steps extracted
// from the model's marked thinking spans.
type Reasoning struct {
	Answer  string
	Steps   []string
	Model   string
	Elapsed float64
}

func (r *Reasoning) FinalAnswer() string     { return r.Answer }
func (r *Reasoning) ModelUsed() string       { return r.Model }
func (r *Reasoning) ElapsedSeconds() float64 { return r.Elapsed }

const (
	fastPromptTemplate = "Answer concisely based on the following context.\n\n" +
		"Context:\n%s\n\nQuestion: %s\n\nAnswer:"
	reasoningPromptTemplate = "Think step-by-step. Using only the context below, answer the question.\n\n" +
		"Context:\n%s\n\nQuestion: %s\n\nAnswer:"
	synthesisPromptTemplate = "You have received several partial answers from different sources. " +
		"Synthesize them into a single coherent, step-by-step answer.\n\n" +
		"Partial answers:\n%s\n\nOriginal question: %s\n\nSynthesized answer:"

	contextDelimiter = "\n\n"
	partialDelimiter = "\n\n---\n\n"
)

// Engine runs the two answering strategies against the generation
// capability.
type Engine struct {
	client         llm.Client
	fastModel      string
	reasoningModel string
	logger         *zap.Logger
}

func NewEngine(client llm.Client, fastModel, reasoningModel string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client:         client,
		fastModel:      fastModel,
		reasoningModel: reasoningModel,
		logger:         logger,
	}
}

// Model reports the model a given mode would use, for client-side
// consistency even when inference is short-circuited.
func (e *Engine) Model(mode Mode) string {
	if mode == ModeReasoning {
		return e.reasoningModel
	}
	return e.fastModel
}

// Infer answers question over chunks in the requested mode. Callers must
// short-circuit an empty chunk set before calling; an empty set here is a
// contract violation.
func (e *Engine) Infer(ctx context.Context, mode Mode, question string, chunks []retrieval.Chunk) (Result, error) {
	if len(chunks) == 0 {
		return nil, errors.New("inference requires at least one chunk")
	}

	start := time.Now()
	if mode == ModeReasoning {
		answer, steps, err := e.reason(ctx, question, chunks)
		if err != nil {
			return nil, err
		}
		return &Reasoning{
			Answer:  answer,
			Steps:   steps,
			Model:   e.reasoningModel,
			Elapsed: time.Since(start).Seconds(),
		}, nil
	}

	answer, err := e.fast(ctx, question, chunks)
	if err != nil {
		return nil, err
	}
	return &Fast{
		Answer:  answer,
		Model:   e.fastModel,
		Elapsed: time.Since(start).Seconds(),
	}, nil
}

// fast concatenates every chunk into one context block and issues a single
// completion.
func (e *Engine) fast(ctx context.Context, question string, chunks []retrieval.Chunk) (string, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	answer, err := e.client.Generate(ctx, llm.Request{
		Model:  e.fastModel,
		Prompt: fmt.Sprintf(fastPromptTemplate, strings.Join(texts, contextDelimiter), question),
	})
	if err != nil {
		return "", fmt.Errorf("fast inference: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// reason queries each chunk independently, extracts thinking spans as
// discrete steps, and synthesizes when more than one chunk answered.
func (e *Engine) reason(ctx context.Context, question string, chunks []retrieval.Chunk) (string, []string, error) {
	steps := make([]string, 0)
	answers := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		raw, err := e.client.Generate(ctx, llm.Request{
			Model:  e.reasoningModel,
			Prompt: fmt.Sprintf(reasoningPromptTemplate, chunk.Text, question),
		})
		if err != nil {
			return "", nil, fmt.Errorf("reasoning inference for chunk %d: %w", i, err)
		}

		chunkSteps, answer := ExtractReasoning(raw)
		steps = append(steps, chunkSteps...)
		if answer != "" {
			answers = append(answers, answer)
		}
	}

	switch len(answers) {
	case 0:
		return NoAnswer, steps, nil
	case 1:
		return answers[0], steps, nil
	}

	raw, err := e.client.Generate(ctx, llm.Request{
		Model:  e.reasoningModel,
		Prompt: fmt.Sprintf(synthesisPromptTemplate, strings.Join(answers, partialDelimiter), question),
	})
	if err != nil {
		return "", nil, fmt.Errorf("synthesis inference: %w", err)
	}

	synthSteps, answer := ExtractReasoning(raw)
	steps = append(steps, synthSteps...)
	if answer == "" {
		answer = NoAnswer
	}
	return answer, steps, nil
}
