package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/oylhq/oyl/apperr"
	"github.com/oylhq/oyl/inference"
	"github.com/oylhq/oyl/query"
	"github.com/oylhq/oyl/store"
)

// TeammateStore loads a teammate and its assistants.
type TeammateStore interface {
	Teammate(ctx context.Context, id string) (store.Teammate, error)
	Assistants(ctx context.Context, teammateID string) ([]store.Assistant, error)
}

// Querier answers a query against a single assistant's knowledge.
type Querier interface {
	Answer(ctx context.Context, assistantID, queryText string, mode inference.Mode, topK int) (query.Response, error)
}

// AssistantResponse is one assistant's contribution to a routed query.
type AssistantResponse struct {
	AssistantID    string         `json:"assistant_id"`
	AssistantName  string         `json:"assistant_name"`
	Answer         string         `json:"answer,omitempty"`
	ReasoningSteps []string       `json:"reasoning_steps,omitempty"`
	Sources        []query.Source `json:"sources,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Decision records which strategy ran, which assistants were selected,
// every per-assistant outcome, and the combined answer.
type Decision struct {
	Strategy             Kind                `json:"strategy"`
	SelectedAssistantIDs []string            `json:"selected_assistant_ids"`
	Responses            []AssistantResponse `json:"responses"`
	Combined             string              `json:"combined_answer"`
}

// Router resolves a teammate's routing strategy and executes it.
type Router struct {
	teammates TeammateStore
	querier   Querier
	logger    *zap.Logger
}

func NewRouter(teammates TeammateStore, querier Querier, logger *zap.Logger) *Router {
	return &Router{teammates: teammates, querier: querier, logger: logger}
}

// Route answers queryText through the teammate's assistants. The strategy
// is resolved from the teammate's stored orchestration config before any
// model call is made; a teammate with zero assistants after subset
// resolution is a not-found condition.
func (r *Router) Route(ctx context.Context, teammateID, queryText string, mode inference.Mode, topK int) (Decision, error) {
	teammate, err := r.teammates.Teammate(ctx, teammateID)
	if err != nil {
		return Decision{}, err
	}

	strategy, err := ParseStrategy(teammate.OrchestrationConfig)
	if err != nil {
		return Decision{}, err
	}

	assistants, err := r.teammates.Assistants(ctx, teammateID)
	if err != nil {
		return Decision{}, fmt.Errorf("list assistants: %w", err)
	}
	assistants = applySubset(assistants, strategy.AssistantIDs)
	if len(assistants) == 0 {
		return Decision{}, apperr.NotFoundf("teammate %s has no assistants to route to", teammateID)
	}

	selected := selectAssistants(assistants, strategy)

	r.logger.Info("routing query",
		zap.String("teammate_id", teammateID),
		zap.String("strategy", string(strategy.Kind)),
		zap.Int("assistants", len(selected)))

	var responses []AssistantResponse
	switch strategy.Kind {
	case KindParallel:
		responses = r.queryParallel(ctx, selected, queryText, mode, topK)
	default:
		responses = r.querySequential(ctx, selected, queryText, mode, topK)
	}

	decision := Decision{
		Strategy:             strategy.Kind,
		SelectedAssistantIDs: assistantIDs(selected),
		Responses:            responses,
	}

	if strategy.Kind == KindWeighted {
		// The top-ranked assistant's answer is the routed answer.
		if responses[0].Error != "" {
			return Decision{}, fmt.Errorf("assistant %s: %s", responses[0].AssistantID, responses[0].Error)
		}
		decision.Combined = responses[0].Answer
		return decision, nil
	}

	parts := make([]string, 0, len(responses))
	for _, resp := range responses {
		if resp.Error != "" {
			parts = append(parts, fmt.Sprintf("%s: [error: %s]", resp.AssistantName, resp.Error))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", resp.AssistantName, resp.Answer))
	}
	decision.Combined = strings.Join(parts, "\n")
	return decision, nil
}

// applySubset keeps only the assistants named in ids, preserving the
// stored creation ordering. An empty subset keeps everything.
func applySubset(assistants []store.Assistant, ids []string) []store.Assistant {
	if len(ids) == 0 {
		return assistants
	}
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	kept := assistants[:0:0]
	for _, a := range assistants {
		if _, ok := wanted[a.ID]; ok {
			kept = append(kept, a)
		}
	}
	return kept
}

// selectAssistants picks the assistants a strategy will query.
// Sequential and parallel take every candidate; weighted ranks by
// descending weight with earlier creation breaking ties and keeps the
// top MaxAssistants.
func selectAssistants(assistants []store.Assistant, strategy Strategy) []store.Assistant {
	if strategy.Kind != KindWeighted {
		return assistants
	}

	ranked := make([]store.Assistant, len(assistants))
	copy(ranked, assistants)
	sort.SliceStable(ranked, func(i, j int) bool {
		wi, wj := assistantWeight(ranked[i], strategy), assistantWeight(ranked[j], strategy)
		if wi != wj {
			return wi > wj
		}
		return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
	})

	limit := strategy.MaxAssistants
	if limit > len(ranked) {
		limit = len(ranked)
	}
	return ranked[:limit]
}

// assistantWeight looks the weight up by id first, then by name
// case-insensitively; unconfigured assistants weigh 1.0.
func assistantWeight(a store.Assistant, strategy Strategy) float64 {
	if w, ok := strategy.Weights[a.ID]; ok {
		return w
	}
	if w, ok := strategy.WeightsByName[a.Name]; ok {
		return w
	}
	for name, w := range strategy.WeightsByName {
		if strings.EqualFold(name, a.Name) {
			return w
		}
	}
	return 1.0
}

func (r *Router) querySequential(ctx context.Context, assistants []store.Assistant, queryText string, mode inference.Mode, topK int) []AssistantResponse {
	responses := make([]AssistantResponse, 0, len(assistants))
	for _, assistant := range assistants {
		responses = append(responses, r.queryOne(ctx, assistant, queryText, mode, topK))
	}
	return responses
}

func (r *Router) queryParallel(ctx context.Context, assistants []store.Assistant, queryText string, mode inference.Mode, topK int) []AssistantResponse {
	responses := make([]AssistantResponse, len(assistants))
	group, ctx := errgroup.WithContext(ctx)
	for i, assistant := range assistants {
		i, assistant := i, assistant
		group.Go(func() error {
			responses[i] = r.queryOne(ctx, assistant, queryText, mode, topK)
			return nil
		})
	}
	group.Wait()
	return responses
}

// queryOne never fails the route; a branch error is recorded on the
// response so the remaining assistants still run.
func (r *Router) queryOne(ctx context.Context, assistant store.Assistant, queryText string, mode inference.Mode, topK int) AssistantResponse {
	response := AssistantResponse{AssistantID: assistant.ID, AssistantName: assistant.Name}

	answer, err := r.querier.Answer(ctx, assistant.ID, queryText, mode, topK)
	if err != nil {
		r.logger.Warn("assistant query failed",
			zap.String("assistant_id", assistant.ID),
			zap.Error(err))
		response.Error = err.Error()
		return response
	}

	response.Answer = answer.Answer
	response.ReasoningSteps = answer.ReasoningSteps
	response.Sources = answer.Sources
	return response
}

func assistantIDs(assistants []store.Assistant) []string {
	ids := make([]string, len(assistants))
	for i, a := range assistants {
		ids[i] = a.ID
	}
	return ids
}
