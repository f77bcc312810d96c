package nlp

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/claimlens/claimlens/internal/redact"
)

// onnxModel is one exported transformer plus a pool of ready sessions.
type onnxModel struct {
	id         string
	modelPath  string
	tokenizer  *WordPieceTokenizer
	labels     []string
	numLabels  int
	seqLen     int
	outputDims []int64
	sessions   chan *onnxSession
	poolSize   int
}

func loadONNXModel(id, dir string, seqLen int, rt RuntimeSettings, tokenClassification bool) (*onnxModel, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%s model dir is empty: %w", id, ErrModelUnavailable)
	}
	if seqLen <= 0 {
		seqLen = defaultSeqLen
	}
	if err := initRuntime(filepath.Dir(dir)); err != nil {
		return nil, err
	}

	modelPath := resolveModelPath(dir)
	if modelPath == "" {
		return nil, fmt.Errorf("%s model missing in %s: %w", id, dir, ErrModelUnavailable)
	}
	meta, err := loadModelMeta(dir)
	if err != nil {
		return nil, fmt.Errorf("%s load config: %v: %w", id, err, ErrModelUnavailable)
	}
	if len(meta.Labels) == 0 {
		return nil, fmt.Errorf("%s missing labels (config.json id2label or label_map.json): %w", id, ErrModelUnavailable)
	}
	tokenizer, err := LoadTokenizerFromDir(dir, meta.LowerCase)
	if err != nil {
		return nil, fmt.Errorf("%s load tokenizer: %v: %w", id, err, ErrModelUnavailable)
	}
	outputName, outputDims, err := selectOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%s output selection: %v: %w", id, err, ErrModelUnavailable)
	}
	if debugML() {
		redact.Logf("claimlens debug ml: model=%s output_name=%s output_dims=%v labels=%v", id, outputName, outputDims, meta.Labels)
	}

	poolSize := max(rt.MaxSessions, 1)
	m := &onnxModel{
		id:         id,
		modelPath:  modelPath,
		tokenizer:  tokenizer,
		labels:     meta.Labels,
		numLabels:  meta.NumLabels,
		seqLen:     seqLen,
		outputDims: outputDims,
		sessions:   make(chan *onnxSession, poolSize),
		poolSize:   poolSize,
	}
	for i := 0; i < poolSize; i++ {
		ss, err := newSession(modelPath, seqLen, meta.NumLabels, outputDims, rt, tokenClassification, meta.RequiresTokenType, outputName)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("%s create onnx session %d/%d: %v: %w", id, i+1, poolSize, err, ErrModelUnavailable)
		}
		m.sessions <- ss
	}
	redact.Logf("claimlens nlp: loaded %s model=%s sessions=%d seq_len=%d", id, filepath.Base(modelPath), poolSize, seqLen)
	return m, nil
}

// run borrows a session, feeds the encoded text and returns a copy of the raw logits.
func (m *onnxModel) run(ctx context.Context, inputIDs, attn []int64) ([]float32, error) {
	if m == nil || m.sessions == nil {
		return nil, fmt.Errorf("onnx model not initialized: %w", ErrModelUnavailable)
	}
	var ss *onnxSession
	select {
	case ss = <-m.sessions:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { m.sessions <- ss }()

	if debugML() {
		logTokenization(m.id, RequestIDFromContext(ctx), m.seqLen, inputIDs, attn)
	}
	ss.feed(inputIDs, attn)
	if err := ss.session.Run(); err != nil {
		return nil, fmt.Errorf("%s onnx run: %v: %w", m.id, err, ErrModelUnavailable)
	}
	raw := ss.output.GetData()
	out := make([]float32, len(raw))
	copy(out, raw)
	return out, nil
}

// Close releases every pooled session. It must not race with run.
func (m *onnxModel) Close() {
	if m == nil || m.sessions == nil {
		return
	}
	for {
		select {
		case ss := <-m.sessions:
			ss.destroy()
		default:
			return
		}
	}
}

// ONNXSentiment is a sequence-classification sentiment model (e.g. DistilBERT SST-2).
type ONNXSentiment struct {
	model *onnxModel
}

// LoadONNXSentiment loads a sentiment export from dir.
func LoadONNXSentiment(dir string, seqLen int, rt RuntimeSettings) (*ONNXSentiment, error) {
	m, err := loadONNXModel("sentiment", dir, seqLen, rt, false)
	if err != nil {
		return nil, err
	}
	for _, lbl := range m.labels {
		if NormalizeSentimentLabel(lbl) == "" {
			m.Close()
			return nil, fmt.Errorf("sentiment label %q is not positive/negative: %w", lbl, ErrModelUnavailable)
		}
	}
	return &ONNXSentiment{model: m}, nil
}

// Classify returns the arg-max label and its softmax probability.
func (s *ONNXSentiment) Classify(ctx context.Context, text string) (Sentiment, error) {
	if s == nil || s.model == nil {
		return Sentiment{}, fmt.Errorf("sentiment model not initialized: %w", ErrModelUnavailable)
	}
	ids, attn := s.model.tokenizer.Encode(text, s.model.seqLen)
	raw, err := s.model.run(ctx, ids, attn)
	if err != nil {
		return Sentiment{}, err
	}
	return sentimentFromLogits(raw, s.model.labels)
}

// Close releases the ONNX sessions.
func (s *ONNXSentiment) Close() {
	if s != nil {
		s.model.Close()
	}
}

func sentimentFromLogits(raw []float32, labels []string) (Sentiment, error) {
	n := min(len(raw), len(labels))
	if n == 0 {
		return Sentiment{}, fmt.Errorf("empty sentiment output: %w", ErrModelUnavailable)
	}
	probs := softmax(raw[:n])
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	label := NormalizeSentimentLabel(labels[best])
	if label == "" {
		return Sentiment{}, fmt.Errorf("unexpected sentiment label %q: %w", labels[best], ErrModelUnavailable)
	}
	return Sentiment{Label: label, Score: float64(probs[best])}, nil
}

// ONNXRecognizer is a token-classification NER model with BIO/IOB labels
// (OntoNotes-style GPE, LOC, DATE, MONEY, ORG, ...).
type ONNXRecognizer struct {
	model *onnxModel
}

// LoadONNXRecognizer loads a token-classification export from dir.
func LoadONNXRecognizer(dir string, seqLen int, rt RuntimeSettings) (*ONNXRecognizer, error) {
	m, err := loadONNXModel("ner", dir, seqLen, rt, true)
	if err != nil {
		return nil, err
	}
	return &ONNXRecognizer{model: m}, nil
}

// Recognize tags every token of every window and merges BIO runs into entity spans.
func (r *ONNXRecognizer) Recognize(ctx context.Context, text string) ([]Entity, error) {
	if r == nil || r.model == nil {
		return nil, fmt.Errorf("ner model not initialized: %w", ErrModelUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	m := r.model
	windows := m.tokenizer.EncodeWindows(text, m.seqLen)
	return tagWindows(ctx, text, windows, func(ctx context.Context, w encodedWindow) ([]string, error) {
		logits, err := m.run(ctx, w.IDs, w.Attn)
		if err != nil {
			return nil, err
		}
		return argmaxTokenLabels(logits, m.numLabels, m.labels, len(w.Offsets)), nil
	})
}

type windowTagger func(ctx context.Context, w encodedWindow) ([]string, error)

// tagWindows labels each window in order. A span cut by a window boundary is
// rejoined when the next window opens with an I- token of the same type.
func tagWindows(ctx context.Context, text string, windows []encodedWindow, tag windowTagger) ([]Entity, error) {
	var entities []Entity
	for _, w := range windows {
		labels, err := tag(ctx, w)
		if err != nil {
			return nil, err
		}
		found := entitiesFromTokenLabels(labels, w.Offsets)
		if len(found) > 0 && len(entities) > 0 && continuesSpan(text, entities[len(entities)-1], found[0], labels, w.Offsets) {
			entities[len(entities)-1].EndByte = found[0].EndByte
			found = found[1:]
		}
		entities = append(entities, found...)
	}
	for i := range entities {
		entities[i].Text = text[entities[i].StartByte:entities[i].EndByte]
		entities[i].Source = SourceONNX
	}
	return entities, nil
}

func continuesSpan(text string, prev, next Entity, labels []string, offsets []tokenOffset) bool {
	if prev.Label != next.Label || prev.EndByte > next.StartByte {
		return false
	}
	for i, off := range offsets {
		if off.Start < 0 || i >= len(labels) {
			continue
		}
		prefix, _ := splitLabel(labels[i])
		return off.Start == next.StartByte && prefix == "I" &&
			strings.TrimSpace(text[prev.EndByte:next.StartByte]) == ""
	}
	return false
}

// Close releases the ONNX sessions.
func (r *ONNXRecognizer) Close() {
	if r != nil {
		r.model.Close()
	}
}

func argmaxTokenLabels(logits []float32, numLabels int, names []string, tokens int) []string {
	if numLabels <= 0 {
		return nil
	}
	labels := make([]string, tokens)
	for i := 0; i < tokens; i++ {
		base := i * numLabels
		if base >= len(logits) {
			break
		}
		best := 0
		bestScore := float32(-math.MaxFloat32)
		for j := 0; j < numLabels && base+j < len(logits); j++ {
			if logits[base+j] > bestScore {
				best = j
				bestScore = logits[base+j]
			}
		}
		if best < len(names) {
			labels[i] = names[best]
		}
	}
	return labels
}

// entitiesFromTokenLabels merges consecutive tokens of the same type. A B- prefix
// or a type change starts a new span; O or an empty label closes the current one.
func entitiesFromTokenLabels(labels []string, offsets []tokenOffset) []Entity {
	if len(labels) == 0 || len(offsets) == 0 {
		return nil
	}
	var entities []Entity
	var cur *Entity

	for i, lbl := range labels {
		if i >= len(offsets) {
			break
		}
		offset := offsets[i]
		if offset.Start < 0 || offset.End <= offset.Start {
			continue
		}
		prefix, typ := splitLabel(lbl)
		if typ == "" || strings.EqualFold(lbl, "O") {
			if cur != nil {
				entities = append(entities, *cur)
				cur = nil
			}
			continue
		}
		if prefix == "B" || prefix == "S" || cur == nil || !strings.EqualFold(cur.Label, typ) {
			if cur != nil {
				entities = append(entities, *cur)
			}
			cur = &Entity{Label: strings.ToUpper(typ), StartByte: offset.Start, EndByte: offset.End}
			continue
		}
		if offset.End > cur.EndByte {
			cur.EndByte = offset.End
		}
	}
	if cur != nil {
		entities = append(entities, *cur)
	}
	return entities
}

func splitLabel(lbl string) (string, string) {
	lbl = strings.TrimSpace(lbl)
	if lbl == "" {
		return "", ""
	}
	prefix, typ, ok := strings.Cut(lbl, "-")
	if !ok || len(prefix) != 1 {
		return "", lbl
	}
	return strings.ToUpper(prefix), typ
}

func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		maxVal = max(maxVal, v)
	}
	sum := 0.0
	out := make([]float32, len(logits))
	for i, v := range logits {
		exp := math.Exp(float64(v - maxVal))
		out[i] = float32(exp)
		sum += exp
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

func logTokenization(modelID, requestID string, maxTokens int, inputIDs, attn []int64) {
	count := 0
	for _, v := range attn {
		if v > 0 {
			count++
		}
	}
	preview := inputIDs
	if len(preview) > 8 {
		preview = preview[:8]
	}
	redact.Logf("claimlens debug ml: request_id=%s model=%s max_tokens=%d token_count=%d first_ids=%v", requestID, modelID, maxTokens, count, preview)
}
