package nlp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// WordPieceTokenizer implements a minimal BERT/DistilBERT-compatible tokenizer
// with byte offsets back into the source text.
type WordPieceTokenizer struct {
	vocab        map[string]int64
	lowerCase    bool
	clsID        int64
	sepID        int64
	padID        int64
	unkID        int64
	continuation string
	maxWordBytes int
}

type tokenOffset struct {
	Start int
	End   int
}

var noOffset = tokenOffset{Start: -1, End: -1}

// NewWordPieceTokenizer builds a tokenizer over an in-memory vocab.
func NewWordPieceTokenizer(vocab map[string]int64, lowerCase bool) *WordPieceTokenizer {
	return &WordPieceTokenizer{
		vocab:        vocab,
		lowerCase:    lowerCase,
		continuation: "##",
		clsID:        vocab["[CLS]"],
		sepID:        vocab["[SEP]"],
		padID:        vocab["[PAD]"],
		unkID:        vocab["[UNK]"],
		maxWordBytes: 200,
	}
}

// LoadWordPieceTokenizer builds the tokenizer from vocab.txt.
func LoadWordPieceTokenizer(path string, lowerCase bool) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	return NewWordPieceTokenizer(vocab, lowerCase), nil
}

// LoadTokenizerFromDir loads a tokenizer from vocab.txt or a WordPiece tokenizer.json.
func LoadTokenizerFromDir(dir string, lowerCase bool) (*WordPieceTokenizer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("tokenizer dir is empty")
	}
	for _, path := range []string{
		filepath.Join(dir, "vocab.txt"),
		filepath.Join(dir, "tokenizer", "vocab.txt"),
	} {
		if _, err := os.Stat(path); err == nil {
			return LoadWordPieceTokenizer(path, lowerCase)
		}
	}
	for _, path := range []string{
		filepath.Join(dir, "tokenizer.json"),
		filepath.Join(dir, "tokenizer", "tokenizer.json"),
	} {
		if _, err := os.Stat(path); err == nil {
			return loadTokenizerFromJSON(path, lowerCase)
		}
	}
	return nil, fmt.Errorf("tokenizer assets not found (vocab.txt or tokenizer.json)")
}

func loadTokenizerFromJSON(path string, lowerCase bool) (*WordPieceTokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer.json: %w", err)
	}
	var raw struct {
		Model struct {
			Type  string         `json:"type"`
			Vocab map[string]any `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode tokenizer.json: %w", err)
	}
	if t := strings.ToLower(strings.TrimSpace(raw.Model.Type)); t != "" && t != "wordpiece" {
		return nil, fmt.Errorf("unsupported tokenizer model type %q", raw.Model.Type)
	}
	vocab := make(map[string]int64, len(raw.Model.Vocab))
	for k, v := range raw.Model.Vocab {
		if num, ok := asInt64(v); ok {
			vocab[k] = num
		}
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("tokenizer.json missing vocab")
	}
	return NewWordPieceTokenizer(vocab, lowerCase), nil
}

func asInt64(v any) (int64, bool) {
	switch num := v.(type) {
	case float64:
		return int64(num), true
	case int64:
		return num, true
	case int:
		return int64(num), true
	default:
		return 0, false
	}
}

// Encode converts text into token IDs and an attention mask of length seqLen.
func (t *WordPieceTokenizer) Encode(text string, seqLen int) ([]int64, []int64) {
	ids, attn, _ := t.EncodeWithOffsets(text, seqLen)
	return ids, attn
}

// EncodeWithOffsets converts text into token IDs, attention mask and per-token byte offsets.
// Special and padding positions carry offset -1. Input beyond seqLen-2 pieces is dropped.
func (t *WordPieceTokenizer) EncodeWithOffsets(text string, seqLen int) ([]int64, []int64, []tokenOffset) {
	if seqLen <= 2 {
		return nil, nil, nil
	}
	capacity := seqLen - 2
	ids := make([]int64, 0, capacity)
	offsets := make([]tokenOffset, 0, capacity)

fill:
	for _, w := range splitWordsWithOffsets(text) {
		for _, p := range t.wordPieceOffsets(w.Text) {
			if len(ids) >= capacity {
				break fill
			}
			ids = append(ids, p.id)
			offsets = append(offsets, tokenOffset{Start: w.Start + p.start, End: w.Start + p.end})
		}
	}
	win := t.frame(ids, offsets, seqLen)
	return win.IDs, win.Attn, win.Offsets
}

// encodedWindow is one model-sized slice of a longer text.
type encodedWindow struct {
	IDs     []int64
	Attn    []int64
	Offsets []tokenOffset
}

// EncodeWindows covers the whole text with consecutive windows of at most
// seqLen-2 pieces each. A word only straddles two windows when its pieces alone
// exceed a window. Offsets stay relative to text.
func (t *WordPieceTokenizer) EncodeWindows(text string, seqLen int) []encodedWindow {
	if seqLen <= 2 {
		return nil
	}
	capacity := seqLen - 2
	var (
		windows []encodedWindow
		ids     []int64
		offsets []tokenOffset
	)
	flush := func() {
		if len(ids) == 0 {
			return
		}
		windows = append(windows, t.frame(ids, offsets, seqLen))
		ids, offsets = nil, nil
	}
	for _, w := range splitWordsWithOffsets(text) {
		pieces := t.wordPieceOffsets(w.Text)
		if len(ids)+len(pieces) > capacity && len(pieces) <= capacity {
			flush()
		}
		for _, p := range pieces {
			if len(ids) >= capacity {
				flush()
			}
			ids = append(ids, p.id)
			offsets = append(offsets, tokenOffset{Start: w.Start + p.start, End: w.Start + p.end})
		}
	}
	flush()
	return windows
}

// frame wraps pieces in [CLS]/[SEP] and pads to seqLen.
func (t *WordPieceTokenizer) frame(pieces []int64, pieceOffsets []tokenOffset, seqLen int) encodedWindow {
	tokens := make([]int64, 0, seqLen)
	offsets := make([]tokenOffset, 0, seqLen)
	tokens = append(tokens, t.clsID)
	offsets = append(offsets, noOffset)
	tokens = append(tokens, pieces...)
	offsets = append(offsets, pieceOffsets...)
	tokens = append(tokens, t.sepID)
	offsets = append(offsets, noOffset)

	attn := make([]int64, seqLen)
	for i := range tokens {
		attn[i] = 1
	}
	for len(tokens) < seqLen {
		tokens = append(tokens, t.padID)
		offsets = append(offsets, noOffset)
	}
	return encodedWindow{IDs: tokens, Attn: attn, Offsets: offsets}
}

type wordPieceOffset struct {
	id    int64
	start int
	end   int
}

// wordPieceOffsets runs greedy longest-match-first over one pre-token.
// Offsets are relative to the original (not lower-cased) word.
func (t *WordPieceTokenizer) wordPieceOffsets(word string) []wordPieceOffset {
	whole := []wordPieceOffset{{id: t.unkID, start: 0, end: len(word)}}
	if len(word) > t.maxWordBytes {
		return whole
	}
	token := word
	if t.lowerCase {
		token = strings.ToLower(word)
	}
	if id, ok := t.vocab[token]; ok {
		return []wordPieceOffset{{id: id, start: 0, end: len(word)}}
	}
	// Lower-casing changed byte lengths; piece offsets would drift.
	sameWidth := len(token) == len(word)

	var pieces []wordPieceOffset
	start := 0
	for start < len(token) {
		end := len(token)
		matched := false
		for end > start {
			sub := token[start:end]
			if start > 0 {
				sub = t.continuation + sub
			}
			if id, ok := t.vocab[sub]; ok {
				p := wordPieceOffset{id: id, start: start, end: end}
				if !sameWidth {
					p.start, p.end = 0, len(word)
				}
				pieces = append(pieces, p)
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			return whole
		}
	}
	if len(pieces) == 0 {
		return whole
	}
	return pieces
}

type wordSpan struct {
	Text  string
	Start int
	End   int
}

// splitWordsWithOffsets splits on whitespace and isolates punctuation, like BERT's
// basic tokenizer, so "Street," becomes "Street" and ",".
func splitWordsWithOffsets(text string) []wordSpan {
	if text == "" {
		return nil
	}
	var spans []wordSpan
	start := -1
	flush := func(end int) {
		if start >= 0 {
			spans = append(spans, wordSpan{Text: text[start:end], Start: start, End: end})
			start = -1
		}
	}
	for idx, r := range text {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush(idx)
		case isPunctuation(r):
			flush(idx)
			end := idx + len(string(r))
			spans = append(spans, wordSpan{Text: text[idx:end], Start: idx, End: end})
		default:
			if start < 0 {
				start = idx
			}
		}
	}
	flush(len(text))
	return spans
}

func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
