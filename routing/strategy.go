// Package routing fans a teammate's query out across its assistants
// according to a configured strategy and combines the per-assistant
// answers.
package routing

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/oylhq/oyl/apperr"
)

// Kind names a routing strategy.
type Kind string

const (
	KindWeighted   Kind = "weighted"
	KindSequential Kind = "sequential"
	KindParallel   Kind = "parallel"
)

// Strategy is the parsed routing configuration: a tagged variant built once
// from the teammate's stored config blob, before any external call.
type Strategy struct {
	Kind Kind

	// Weighted fields; ignored by sequential/parallel.
	Weights       map[string]float64 // resolved weight by assistant id
	WeightsByName map[string]float64 // resolved weight by assistant name
	MaxAssistants int

	// Optional explicit assistant-id subset, honored by every strategy.
	AssistantIDs []string
}

type rawStrategy struct {
	Strategy      string         `json:"strategy"`
	Weights       map[string]any `json:"weights"`
	WeightsByName map[string]any `json:"weights_by_name"`
	AssistantIDs  []string       `json:"assistant_ids"`
	MaxAssistants *int           `json:"max_assistants"`
}

// ParseStrategy builds a Strategy from a teammate's orchestration config.
// A nil or empty blob yields the default weighted strategy. Unknown
// strategy names default to weighted; unknown fields and fields of the
// wrong type are configuration errors.
func ParseStrategy(raw json.RawMessage) (Strategy, error) {
	strategy := Strategy{Kind: KindWeighted, MaxAssistants: 1}
	if len(raw) == 0 || string(raw) == "null" {
		return strategy, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var parsed rawStrategy
	if err := dec.Decode(&parsed); err != nil {
		return Strategy{}, apperr.Configf("invalid routing configuration: %v", err)
	}

	switch Kind(strings.ToLower(strings.TrimSpace(parsed.Strategy))) {
	case KindSequential:
		strategy.Kind = KindSequential
	case KindParallel:
		strategy.Kind = KindParallel
	default:
		strategy.Kind = KindWeighted
	}

	strategy.Weights = resolveWeights(parsed.Weights)
	strategy.WeightsByName = resolveWeights(parsed.WeightsByName)
	strategy.AssistantIDs = parsed.AssistantIDs

	if parsed.MaxAssistants != nil {
		strategy.MaxAssistants = *parsed.MaxAssistants
	}
	if strategy.MaxAssistants < 1 {
		strategy.MaxAssistants = 1
	}

	return strategy, nil
}

func resolveWeights(raw map[string]any) map[string]float64 {
	if len(raw) == 0 {
		return nil
	}
	weights := make(map[string]float64, len(raw))
	for key, value := range raw {
		weights[key] = clampWeight(resolveWeight(value))
	}
	return weights
}

// resolveWeight coerces a configured weight value; non-numeric or
// unparsable values default to 1.0.
func resolveWeight(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return parsed
		}
		return 1.0
	case json.Number:
		if parsed, err := v.Float64(); err == nil {
			return parsed
		}
		return 1.0
	default:
		return 1.0
	}
}

// clampWeight pins non-positive weights to zero.
func clampWeight(w float64) float64 {
	if w <= 0 {
		return 0
	}
	return w
}
