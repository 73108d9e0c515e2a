package routing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oylhq/oyl/apperr"
)

func TestParseStrategyDefaults(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage("null"), json.RawMessage("{}")} {
		strategy, err := ParseStrategy(raw)
		require.NoError(t, err)
		require.Equal(t, KindWeighted, strategy.Kind)
		require.Equal(t, 1, strategy.MaxAssistants)
	}
}

func TestParseStrategyKinds(t *testing.T) {
	cases := map[string]Kind{
		"sequential": KindSequential,
		"parallel":   KindParallel,
		"weighted":   KindWeighted,
		"Parallel":   KindParallel,
		// Unknown strategy names fall back to weighted.
		"round_robin": KindWeighted,
		"":            KindWeighted,
	}
	for name, want := range cases {
		strategy, err := ParseStrategy(json.RawMessage(`{"strategy": "` + name + `"}`))
		require.NoError(t, err)
		require.Equal(t, want, strategy.Kind, "strategy %q", name)
	}
}

func TestParseStrategyRejectsUnknownFields(t *testing.T) {
	_, err := ParseStrategy(json.RawMessage(`{"strategy": "weighted", "weigths": {"a": 2}}`))
	require.Error(t, err)
	require.True(t, apperr.IsConfig(err))
}

func TestParseStrategyRejectsWrongFieldType(t *testing.T) {
	_, err := ParseStrategy(json.RawMessage(`{"max_assistants": "three"}`))
	require.Error(t, err)
	require.True(t, apperr.IsConfig(err))
}

func TestParseStrategyWeightResolution(t *testing.T) {
	raw := json.RawMessage(`{
		"strategy": "weighted",
		"weights": {"a": 2.5, "b": -1, "c": "0.75", "d": "not a number", "e": true}
	}`)
	strategy, err := ParseStrategy(raw)
	require.NoError(t, err)

	require.Equal(t, 2.5, strategy.Weights["a"])
	require.Equal(t, 0.0, strategy.Weights["b"], "negative weights clamp to zero")
	require.Equal(t, 0.75, strategy.Weights["c"])
	require.Equal(t, 1.0, strategy.Weights["d"], "non-numeric weights default to 1.0")
	require.Equal(t, 1.0, strategy.Weights["e"])
}

func TestParseStrategyMaxAssistantsFloor(t *testing.T) {
	strategy, err := ParseStrategy(json.RawMessage(`{"max_assistants": 0}`))
	require.NoError(t, err)
	require.Equal(t, 1, strategy.MaxAssistants)

	strategy, err = ParseStrategy(json.RawMessage(`{"max_assistants": 3}`))
	require.NoError(t, err)
	require.Equal(t, 3, strategy.MaxAssistants)
}

func TestParseStrategySubsetAndNames(t *testing.T) {
	raw := json.RawMessage(`{
		"strategy": "sequential",
		"assistant_ids": ["a-1", "a-2"],
		"weights_by_name": {"Billing": 2}
	}`)
	strategy, err := ParseStrategy(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"a-1", "a-2"}, strategy.AssistantIDs)
	require.Equal(t, 2.0, strategy.WeightsByName["Billing"])
}
