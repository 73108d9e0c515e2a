package inference_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oylhq/oyl/inference"
	"github.com/oylhq/oyl/llm"
	"github.com/oylhq/oyl/retrieval"
)

type stubClient struct {
	calls   []llm.Request
	respond func(req llm.Request) (string, error)
}

func (s *stubClient) Generate(_ context.Context, req llm.Request) (string, error) {
	s.calls = append(s.calls, req)
	return s.respond(req)
}

func chunksOf(texts ...string) []retrieval.Chunk {
	chunks := make([]retrieval.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = retrieval.Chunk{Text: t}
	}
	return chunks
}

func TestParseMode(t *testing.T) {
	require.Equal(t, inference.ModeReasoning, inference.ParseMode("reasoning"))
	require.Equal(t, inference.ModeReasoning, inference.ParseMode("  Reasoning "))
	require.Equal(t, inference.ModeFast, inference.ParseMode("fast"))
	require.Equal(t, inference.ModeFast, inference.ParseMode(""))
	require.Equal(t, inference.ModeFast, inference.ParseMode("thinking"))
}

func TestEngineModelPerMode(t *testing.T) {
	engine := inference.NewEngine(nil, "fast-model", "reasoning-model", nil)
	require.Equal(t, "fast-model", engine.Model(inference.ModeFast))
	require.Equal(t, "reasoning-model", engine.Model(inference.ModeReasoning))
}

func TestInferRejectsEmptyChunks(t *testing.T) {
	engine := inference.NewEngine(&stubClient{}, "f", "r", nil)
	_, err := engine.Infer(context.Background(), inference.ModeFast, "q", nil)
	require.Error(t, err)
}

func TestInferFastSingleCompletion(t *testing.T) {
	client := &stubClient{respond: func(llm.Request) (string, error) {
		return "  the answer  ", nil
	}}
	engine := inference.NewEngine(client, "fast-model", "reasoning-model", nil)

	result, err := engine.Infer(context.Background(), inference.ModeFast, "what?", chunksOf("alpha", "beta"))
	require.NoError(t, err)
	require.Len(t, client.calls, 1)
	require.Equal(t, "fast-model", client.calls[0].Model)
	require.Contains(t, client.calls[0].Prompt, "alpha\n\nbeta")
	require.Contains(t, client.calls[0].Prompt, "what?")

	fast, ok := result.(*inference.Fast)
	require.True(t, ok)
	require.Equal(t, "the answer", fast.Answer)
	require.Equal(t, "fast-model", fast.Model)
}

func TestInferReasoningSingleChunkSkipsSynthesis(t *testing.T) {
	client := &stubClient{respond: func(llm.Request) (string, error) {
		return "<think>check the context</think>42", nil
	}}
	engine := inference.NewEngine(client, "f", "r", nil)

	result, err := engine.Infer(context.Background(), inference.ModeReasoning, "q", chunksOf("only chunk"))
	require.NoError(t, err)
	require.Len(t, client.calls, 1)

	reasoning, ok := result.(*inference.Reasoning)
	require.True(t, ok)
	require.Equal(t, "42", reasoning.Answer)
	require.Equal(t, []string{"check the context"}, reasoning.Steps)
	require.Equal(t, "r", reasoning.Model)
}

func TestInferReasoningSynthesizesMultipleAnswers(t *testing.T) {
	client := &stubClient{}
	client.respond = func(req llm.Request) (string, error) {
		if strings.Contains(req.Prompt, "partial answers") {
			return "<think>combine both</think>merged answer", nil
		}
		return "<think>per-chunk step</think>partial " + string(rune('a'+len(client.calls))), nil
	}
	engine := inference.NewEngine(client, "f", "r", nil)

	result, err := engine.Infer(context.Background(), inference.ModeReasoning, "q", chunksOf("one", "two"))
	require.NoError(t, err)
	// Two per-chunk calls plus one synthesis call.
	require.Len(t, client.calls, 3)
	require.Contains(t, client.calls[2].Prompt, "---")

	reasoning := result.(*inference.Reasoning)
	require.Equal(t, "merged answer", reasoning.Answer)
	require.Equal(t, []string{"per-chunk step", "per-chunk step", "combine both"}, reasoning.Steps)
}

func TestInferReasoningNoAnswersReturnsFixedResponse(t *testing.T) {
	client := &stubClient{respond: func(llm.Request) (string, error) {
		return "<think>nothing useful here</think>", nil
	}}
	engine := inference.NewEngine(client, "f", "r", nil)

	result, err := engine.Infer(context.Background(), inference.ModeReasoning, "q", chunksOf("one", "two"))
	require.NoError(t, err)
	// No synthesis when zero chunks answered.
	require.Len(t, client.calls, 2)
	require.Equal(t, inference.NoAnswer, result.FinalAnswer())
}

func TestInferPropagatesGenerationFailure(t *testing.T) {
	boom := errors.New("model unreachable")
	client := &stubClient{respond: func(llm.Request) (string, error) {
		return "", boom
	}}
	engine := inference.NewEngine(client, "f", "r", nil)

	_, err := engine.Infer(context.Background(), inference.ModeReasoning, "q", chunksOf("one"))
	require.ErrorIs(t, err, boom)
}
