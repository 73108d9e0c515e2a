package routing

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/oylhq/oyl/apperr"
	"github.com/oylhq/oyl/inference"
	"github.com/oylhq/oyl/query"
	"github.com/oylhq/oyl/store"
)

type stubTeammateStore struct {
	teammate   store.Teammate
	assistants []store.Assistant
}

func (s *stubTeammateStore) Teammate(_ context.Context, id string) (store.Teammate, error) {
	if id != s.teammate.ID {
		return store.Teammate{}, apperr.NotFoundf("teammate %s not found", id)
	}
	return s.teammate, nil
}

func (s *stubTeammateStore) Assistants(context.Context, string) ([]store.Assistant, error) {
	return s.assistants, nil
}

type stubQuerier struct {
	mu     sync.Mutex
	asked  []string
	fail   map[string]error
	answer func(assistantID string) string
}

func (s *stubQuerier) Answer(_ context.Context, assistantID, _ string, _ inference.Mode, _ int) (query.Response, error) {
	s.mu.Lock()
	s.asked = append(s.asked, assistantID)
	s.mu.Unlock()

	if err := s.fail[assistantID]; err != nil {
		return query.Response{}, err
	}
	if s.answer != nil {
		return query.Response{Answer: s.answer(assistantID)}, nil
	}
	return query.Response{Answer: "answer from " + assistantID}, nil
}

func fixtures(orchestration string, assistants ...store.Assistant) *stubTeammateStore {
	return &stubTeammateStore{
		teammate: store.Teammate{
			ID:                  "tm-1",
			Name:                "support",
			OrchestrationConfig: json.RawMessage(orchestration),
		},
		assistants: assistants,
	}
}

func assistant(id, name string, created time.Time) store.Assistant {
	return store.Assistant{ID: id, TeammateID: "tm-1", Name: name, CreatedAt: created}
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRouteUnknownTeammate(t *testing.T) {
	router := NewRouter(fixtures(`{}`), &stubQuerier{}, zap.NewNop())

	_, err := router.Route(context.Background(), "missing", "q", inference.ModeFast, 5)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRouteNoAssistants(t *testing.T) {
	router := NewRouter(fixtures(`{}`), &stubQuerier{}, zap.NewNop())

	_, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRouteSubsetResolvingEmptyIsNotFound(t *testing.T) {
	teammates := fixtures(`{"assistant_ids": ["nope"]}`,
		assistant("a-1", "alpha", t0))
	router := NewRouter(teammates, &stubQuerier{}, zap.NewNop())

	_, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRouteWeightedPicksHighestWeight(t *testing.T) {
	teammates := fixtures(`{"strategy": "weighted", "weights": {"a-1": 0.1, "a-2": 2.5}}`,
		assistant("a-1", "alpha", t0),
		assistant("a-2", "beta", t0.Add(time.Minute)))
	querier := &stubQuerier{}
	router := NewRouter(teammates, querier, zap.NewNop())

	decision, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.NoError(t, err)
	require.Equal(t, KindWeighted, decision.Strategy)
	require.Equal(t, []string{"a-2"}, decision.SelectedAssistantIDs)
	require.Equal(t, []string{"a-2"}, querier.asked)
	require.Equal(t, "answer from a-2", decision.Combined)
}

func TestRouteWeightedTieBreaksByCreation(t *testing.T) {
	// Equal default weights: the earliest-created assistant wins.
	teammates := fixtures(`{"strategy": "weighted"}`,
		assistant("a-2", "beta", t0.Add(time.Minute)),
		assistant("a-1", "alpha", t0))
	router := NewRouter(teammates, &stubQuerier{}, zap.NewNop())

	decision, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"a-1"}, decision.SelectedAssistantIDs)
}

func TestRouteWeightedMaxAssistants(t *testing.T) {
	teammates := fixtures(`{"strategy": "weighted", "max_assistants": 2, "weights": {"a-3": 9}}`,
		assistant("a-1", "alpha", t0),
		assistant("a-2", "beta", t0.Add(time.Minute)),
		assistant("a-3", "gamma", t0.Add(2*time.Minute)))
	router := NewRouter(teammates, &stubQuerier{}, zap.NewNop())

	decision, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"a-3", "a-1"}, decision.SelectedAssistantIDs)
	require.Len(t, decision.Responses, 2)
	// Top-ranked assistant supplies the combined answer.
	require.Equal(t, "answer from a-3", decision.Combined)
}

func TestRouteWeightedFirstFailureFailsRoute(t *testing.T) {
	teammates := fixtures(`{"strategy": "weighted", "weights": {"a-1": 5}}`,
		assistant("a-1", "alpha", t0),
		assistant("a-2", "beta", t0.Add(time.Minute)))
	querier := &stubQuerier{fail: map[string]error{"a-1": errors.New("model down")}}
	router := NewRouter(teammates, querier, zap.NewNop())

	_, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.Error(t, err)
	require.Contains(t, err.Error(), "a-1")
}

func TestRouteSequentialQueriesAllInOrder(t *testing.T) {
	teammates := fixtures(`{"strategy": "sequential"}`,
		assistant("a-1", "alpha", t0),
		assistant("a-2", "beta", t0.Add(time.Minute)),
		assistant("a-3", "gamma", t0.Add(2*time.Minute)))
	querier := &stubQuerier{}
	router := NewRouter(teammates, querier, zap.NewNop())

	decision, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"a-1", "a-2", "a-3"}, querier.asked)
	require.Len(t, decision.Responses, 3)
	for i, id := range []string{"a-1", "a-2", "a-3"} {
		require.Equal(t, id, decision.Responses[i].AssistantID)
		require.Equal(t, "answer from "+id, decision.Responses[i].Answer)
	}
	require.Contains(t, decision.Combined, "alpha: answer from a-1")
	require.Contains(t, decision.Combined, "gamma: answer from a-3")
}

func TestRouteParallelCollectsAllResponses(t *testing.T) {
	teammates := fixtures(`{"strategy": "parallel"}`,
		assistant("a-1", "alpha", t0),
		assistant("a-2", "beta", t0.Add(time.Minute)),
		assistant("a-3", "gamma", t0.Add(2*time.Minute)))
	querier := &stubQuerier{}
	router := NewRouter(teammates, querier, zap.NewNop())

	decision, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.NoError(t, err)
	require.Len(t, querier.asked, 3)
	require.Len(t, decision.Responses, 3)
	// Response order matches assistant order regardless of completion order.
	for i, id := range []string{"a-1", "a-2", "a-3"} {
		require.Equal(t, id, decision.Responses[i].AssistantID)
	}
}

func TestRouteBranchFailureDoesNotStopOthers(t *testing.T) {
	teammates := fixtures(`{"strategy": "sequential"}`,
		assistant("a-1", "alpha", t0),
		assistant("a-2", "beta", t0.Add(time.Minute)))
	querier := &stubQuerier{fail: map[string]error{"a-1": errors.New("knowledge base offline")}}
	router := NewRouter(teammates, querier, zap.NewNop())

	decision, err := router.Route(context.Background(), "tm-1", "q", inference.ModeFast, 5)
	require.NoError(t, err)
	require.Equal(t, []string{"a-1", "a-2"}, querier.asked)
	require.Equal(t, "knowledge base offline", decision.Responses[0].Error)
	require.Equal(t, "answer from a-2", decision.Responses[1].Answer)
	require.Contains(t, decision.Combined, "[error: knowledge base offline]")
}
