package nlp

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// ProseSegmenter detects sentence boundaries with prose's punkt-style segmenter.
type ProseSegmenter struct{}

// NewProseSegmenter returns a stateless segmenter.
func NewProseSegmenter() *ProseSegmenter {
	return &ProseSegmenter{}
}

// Sentences returns the non-blank sentences of text in order.
func (s *ProseSegmenter) Sentences(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil, fmt.Errorf("segment sentences: %v: %w", err, ErrModelUnavailable)
	}
	var out []string
	for _, sent := range doc.Sentences() {
		if t := strings.TrimSpace(sent.Text); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// ProseRecognizer runs prose's bundled averaged-perceptron NER. It only knows a
// coarse label set (PERSON, GPE), so it suits offline or model-less deployments.
type ProseRecognizer struct{}

// NewProseRecognizer returns a stateless recognizer.
func NewProseRecognizer() *ProseRecognizer {
	return &ProseRecognizer{}
}

// Recognize returns prose entities with offsets located by forward search.
func (r *ProseRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, fmt.Errorf("prose ner: %v: %w", err, ErrModelUnavailable)
	}
	var out []Entity
	cursor := 0
	for _, ent := range doc.Entities() {
		e := Entity{Label: strings.ToUpper(ent.Label), Text: ent.Text, StartByte: -1, EndByte: -1, Source: SourceProse}
		if idx := strings.Index(text[cursor:], ent.Text); idx >= 0 {
			e.StartByte = cursor + idx
			e.EndByte = e.StartByte + len(ent.Text)
			cursor = e.EndByte
		}
		out = append(out, e)
	}
	return out, nil
}
