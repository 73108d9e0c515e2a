package extract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oylhq/oyl/extract"
	"github.com/oylhq/oyl/llm"
)

type stubOCR struct {
	text  string
	err   error
	calls []llm.Request
}

func (s *stubOCR) Generate(_ context.Context, req llm.Request) (string, error) {
	s.calls = append(s.calls, req)
	return s.text, s.err
}

func TestExtractPlainText(t *testing.T) {
	ocr := &stubOCR{}
	e := extract.NewExtractor(ocr, "ocr-model", nil)

	text, err := e.Extract(context.Background(), []byte("hello world"), "text/plain")
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
	require.Empty(t, ocr.calls, "text decoding must not call OCR")
}

func TestExtractInvalidUTF8Replaced(t *testing.T) {
	e := extract.NewExtractor(&stubOCR{}, "ocr-model", nil)

	text, err := e.Extract(context.Background(), []byte{'o', 'k', 0xff, 0xfe}, "text/plain; charset=utf-8")
	require.NoError(t, err)
	require.Contains(t, text, "ok")
	require.NotContains(t, text, string([]byte{0xff}))
}

func TestExtractUnknownMediaTypeNeverFails(t *testing.T) {
	e := extract.NewExtractor(&stubOCR{err: errors.New("should not be called")}, "ocr-model", nil)

	text, err := e.Extract(context.Background(), []byte("payload"), "application/x-unknown")
	require.NoError(t, err)
	require.Equal(t, "payload", text)
}

func TestExtractImageUsesOCR(t *testing.T) {
	ocr := &stubOCR{text: "scanned content"}
	e := extract.NewExtractor(ocr, "ocr-model", nil)

	data := []byte{0x89, 'P', 'N', 'G'}
	text, err := e.Extract(context.Background(), data, "image/png")
	require.NoError(t, err)
	require.Equal(t, "scanned content", text)
	require.Len(t, ocr.calls, 1)
	require.Equal(t, "ocr-model", ocr.calls[0].Model)
	require.Equal(t, [][]byte{data}, ocr.calls[0].Images)
}

func TestExtractImageOCRFailurePropagates(t *testing.T) {
	boom := errors.New("ocr model unreachable")
	e := extract.NewExtractor(&stubOCR{err: boom}, "ocr-model", nil)

	_, err := e.Extract(context.Background(), []byte{1, 2, 3}, "image/jpeg")
	require.ErrorIs(t, err, boom)
}

func TestExtractMalformedPDFFallsBackToOCR(t *testing.T) {
	ocr := &stubOCR{text: "recovered by ocr"}
	e := extract.NewExtractor(ocr, "ocr-model", nil)

	text, err := e.Extract(context.Background(), []byte("not a real pdf"), "application/pdf")
	require.NoError(t, err)
	require.Equal(t, "recovered by ocr", text)
	require.Len(t, ocr.calls, 1)
}
