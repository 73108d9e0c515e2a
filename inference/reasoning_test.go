package inference_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oylhq/oyl/inference"
)

func TestExtractReasoningSingleSpan(t *testing.T) {
	raw := "<think>Step 1: analyze\nStep 2: conclude</think>Final answer here."

	steps, answer := inference.ExtractReasoning(raw)
	require.Equal(t, []string{"Step 1: analyze", "Step 2: conclude"}, steps)
	require.Equal(t, "Final answer here.", answer)
}

func TestExtractReasoningNoSpan(t *testing.T) {
	steps, answer := inference.ExtractReasoning("  Just an answer.  ")
	require.Empty(t, steps)
	require.NotNil(t, steps)
	require.Equal(t, "Just an answer.", answer)
}

func TestExtractReasoningMultipleSpans(t *testing.T) {
	raw := "<think>first thought</think>partial <think>second thought\n\nthird thought</think>answer"

	steps, answer := inference.ExtractReasoning(raw)
	require.Equal(t, []string{"first thought", "second thought", "third thought"}, steps)
	require.Equal(t, "partial answer", answer)
}

func TestExtractReasoningUnterminatedSpan(t *testing.T) {
	raw := "before<think>never closed\nstill thinking"

	steps, answer := inference.ExtractReasoning(raw)
	require.Equal(t, []string{"never closed", "still thinking"}, steps)
	require.Equal(t, "before", answer)
}

func TestExtractReasoningOnlyThinking(t *testing.T) {
	steps, answer := inference.ExtractReasoning("<think>no conclusion</think>")
	require.Equal(t, []string{"no conclusion"}, steps)
	require.Empty(t, answer)
}

func TestExtractReasoningEmptyInput(t *testing.T) {
	steps, answer := inference.ExtractReasoning("")
	require.Empty(t, steps)
	require.Empty(t, answer)
}
