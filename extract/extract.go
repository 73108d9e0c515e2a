// Package extract converts raw document bytes into plain text. Text-like
// media types decode directly; images and scanned PDFs are forwarded to the
// OCR model through the generation capability.
package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/oylhq/oyl/llm"
)

const ocrPrompt = "Extract all readable text from the provided document or image. " +
	"Return only the extracted text without commentary."

// Extractor turns (bytes, declared media type) into plain text.
type Extractor struct {
	ocr      llm.Client
	ocrModel string
	logger   *zap.Logger
}

func NewExtractor(ocr llm.Client, ocrModel string, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{ocr: ocr, ocrModel: ocrModel, logger: logger}
}

// Extract returns the plain text of data. It never fails for text-like or
// unknown media types; OCR failures for image and PDF content propagate as
// capability errors.
func (e *Extractor) Extract(ctx context.Context, data []byte, mediaType string) (string, error) {
	mime := strings.ToLower(strings.TrimSpace(mediaType))
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}

	switch {
	case strings.HasPrefix(mime, "text/"), mime == "application/json":
		return decodePlain(data), nil

	case mime == "application/pdf":
		return e.extractPDF(ctx, data)

	case strings.HasPrefix(mime, "image/"):
		return e.runOCR(ctx, data)
	}

	// Unknown or unspecified media type: best-effort decode, never an error.
	return decodePlain(data), nil
}

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	pages, err := pdfPages(data)
	if err == nil {
		text := strings.TrimSpace(strings.Join(pages, "\n\n"))
		if text != "" {
			return text, nil
		}
	} else {
		e.logger.Debug("native pdf extraction failed, delegating to OCR", zap.Error(err))
	}

	// Scanned or image-only PDF: let the OCR model read it.
	return e.runOCR(ctx, data)
}

func (e *Extractor) runOCR(ctx context.Context, data []byte) (string, error) {
	text, err := e.ocr.Generate(ctx, llm.Request{
		Model:  e.ocrModel,
		Prompt: ocrPrompt,
		Images: [][]byte{data},
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// decodePlain decodes bytes as UTF-8, replacing invalid sequences. Always
// returns a string, possibly empty.
func decodePlain(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}
