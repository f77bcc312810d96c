package nlp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testVocab() map[string]int64 {
	return map[string]int64{
		"[PAD]":    0,
		"the":      1,
		"car":      2,
		"was":      3,
		"stolen":   4,
		"un":       5,
		"##believ": 6,
		"##able":   7,
		",":        8,
		"denver":   9,
		"in":       10,
		"[UNK]":    100,
		"[CLS]":    101,
		"[SEP]":    102,
	}
}

func TestEncodeWithOffsetsWordPiece(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), true)
	text := "The car, unbelievable"

	ids, attn, offsets := tok.EncodeWithOffsets(text, 10)
	wantIDs := []int64{101, 1, 2, 8, 5, 6, 7, 102, 0, 0}
	if len(ids) != len(wantIDs) {
		t.Fatalf("ids = %v, want %v", ids, wantIDs)
	}
	for i := range wantIDs {
		if ids[i] != wantIDs[i] {
			t.Fatalf("ids = %v, want %v", ids, wantIDs)
		}
	}
	for i, v := range attn {
		want := int64(0)
		if i < 8 {
			want = 1
		}
		if v != want {
			t.Fatalf("attn = %v", attn)
		}
	}

	wantSpans := map[int]string{1: "The", 2: "car", 3: ",", 4: "un", 5: "believ", 6: "able"}
	for i, want := range wantSpans {
		off := offsets[i]
		if got := text[off.Start:off.End]; got != want {
			t.Fatalf("token %d span = %q, want %q", i, got, want)
		}
	}
	for _, i := range []int{0, 7, 8, 9} {
		if offsets[i] != noOffset {
			t.Fatalf("token %d should have no offset, got %+v", i, offsets[i])
		}
	}
}

func TestEncodeTruncatesToSeqLen(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), true)
	ids, attn := tok.Encode("the car was stolen", 4)
	want := []int64{101, 1, 2, 102}
	for i := range want {
		if ids[i] != want[i] || attn[i] != 1 {
			t.Fatalf("ids = %v attn = %v", ids, attn)
		}
	}
	if ids, _, _ := tok.EncodeWithOffsets("the", 2); ids != nil {
		t.Fatalf("expected nil for seqLen <= 2, got %v", ids)
	}
}

func TestEncodeWindowsCoversLongText(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), true)
	text := strings.Repeat("the ", 300) + "it was in Denver."
	target := strings.Index(text, "Denver")

	windows := tok.EncodeWindows(text, 256)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	pieces := 0
	found := false
	for _, w := range windows {
		if len(w.IDs) != 256 || len(w.Attn) != 256 || len(w.Offsets) != 256 {
			t.Fatalf("window lengths = %d/%d/%d", len(w.IDs), len(w.Attn), len(w.Offsets))
		}
		if w.IDs[0] != 101 || w.Offsets[0] != noOffset {
			t.Fatalf("window must open with [CLS], got %d", w.IDs[0])
		}
		for i, off := range w.Offsets {
			if off.Start < 0 {
				continue
			}
			pieces++
			if off.Start == target {
				found = w.IDs[i] == 9 && text[off.Start:off.End] == "Denver"
			}
		}
	}
	if pieces != 305 {
		t.Fatalf("pieces covered = %d, want 305", pieces)
	}
	if !found {
		t.Fatalf("Denver at byte %d not encoded in any window", target)
	}
}

func TestEncodeWindowsKeepsWordsTogether(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), true)
	text := "the car unbelievable"

	windows := tok.EncodeWindows(text, 6)
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	first := windows[0]
	if first.IDs[1] != 1 || first.IDs[2] != 2 || first.IDs[3] != 102 || first.Attn[4] != 0 {
		t.Fatalf("first window = %v attn %v", first.IDs, first.Attn)
	}
	want := []string{"un", "believ", "able"}
	second := windows[1]
	for i, w := range want {
		off := second.Offsets[i+1]
		if got := text[off.Start:off.End]; got != w {
			t.Fatalf("piece %d = %q, want %q", i, got, w)
		}
	}
	if tok.EncodeWindows("the", 2) != nil || tok.EncodeWindows("   ", 8) != nil {
		t.Fatalf("expected no windows")
	}
}

func TestWordPieceUnknownWord(t *testing.T) {
	tok := NewWordPieceTokenizer(testVocab(), true)
	pieces := tok.wordPieceOffsets("zebra")
	if len(pieces) != 1 || pieces[0].id != 100 || pieces[0].end != 5 {
		t.Fatalf("expected whole-word UNK, got %+v", pieces)
	}
}

func TestSplitWordsWithOffsets(t *testing.T) {
	text := "Hit on Main St., Denver"
	spans := splitWordsWithOffsets(text)
	want := []string{"Hit", "on", "Main", "St", ".", ",", "Denver"}
	if len(spans) != len(want) {
		t.Fatalf("spans = %+v", spans)
	}
	for i, w := range want {
		if spans[i].Text != w || text[spans[i].Start:spans[i].End] != w {
			t.Fatalf("span %d = %+v, want %q", i, spans[i], w)
		}
	}
}

func TestLoadTokenizerFromDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadTokenizerFromDir(dir, true); err == nil {
		t.Fatal("expected error for missing assets")
	}

	vocab := "[PAD]\n[UNK]\n[CLS]\n[SEP]\nclaim\n"
	if err := os.WriteFile(filepath.Join(dir, "vocab.txt"), []byte(vocab), 0o600); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadTokenizerFromDir(dir, true)
	if err != nil {
		t.Fatalf("LoadTokenizerFromDir: %v", err)
	}
	ids, _ := tok.Encode("Claim", 4)
	want := []int64{2, 4, 3, 0}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestLoadTokenizerFromJSON(t *testing.T) {
	dir := t.TempDir()
	body := `{"model":{"type":"WordPiece","vocab":{"[PAD]":0,"[UNK]":1,"[CLS]":2,"[SEP]":3,"roof":4}}}`
	if err := os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	tok, err := LoadTokenizerFromDir(dir, true)
	if err != nil {
		t.Fatalf("LoadTokenizerFromDir: %v", err)
	}
	ids, _ := tok.Encode("roof", 3)
	if ids[1] != 4 {
		t.Fatalf("ids = %v", ids)
	}

	unigram := `{"model":{"type":"Unigram","vocab":{"a":0}}}`
	if err := os.WriteFile(filepath.Join(dir, "tokenizer.json"), []byte(unigram), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTokenizerFromDir(dir, true); err == nil {
		t.Fatal("expected unsupported tokenizer type error")
	}
}
