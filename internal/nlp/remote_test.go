package nlp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRemoteSentimentNestedReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer hf_test" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Request-Id") != "req-1" {
			t.Errorf("expected request id header, got %q", r.Header.Get("X-Request-Id"))
		}
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Inputs != "Roof destroyed by hail" {
			t.Errorf("unexpected inputs %q", req.Inputs)
		}
		_, _ = w.Write([]byte(`[[{"label":"NEGATIVE","score":0.97},{"label":"POSITIVE","score":0.03}]]`))
	}))
	defer server.Close()

	s := NewRemoteSentiment(server.URL, "hf_test", time.Second)
	ctx := WithRequestID(context.Background(), "req-1")
	got, err := s.Classify(ctx, "Roof destroyed by hail")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Label != LabelNegative || got.Score != 0.97 {
		t.Fatalf("got %+v", got)
	}
}

func TestRemoteSentimentFlatReplyAndNativeLabels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"label":"LABEL_0","score":0.2},{"label":"LABEL_1","score":0.8}]`))
	}))
	defer server.Close()

	got, err := NewRemoteSentiment(server.URL, "", time.Second).Classify(context.Background(), "all good")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if got.Label != LabelPositive || got.Score != 0.8 {
		t.Fatalf("got %+v", got)
	}
}

func TestRemoteErrorsMapToModelUnavailable(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"error":"Model is currently loading"}`))
	}))
	defer server.Close()

	s := NewRemoteSentiment(server.URL, "", time.Second)
	_, err := s.Classify(context.Background(), "x")
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "currently loading") {
		t.Fatalf("error should carry remote message: %v", err)
	}

	status.Store(http.StatusBadRequest)
	_, err = s.Classify(context.Background(), "x")
	if err == nil || errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("4xx should be a plain error, got %v", err)
	}

	server.Close()
	if _, err := s.Classify(context.Background(), "x"); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("transport failure should be ErrModelUnavailable, got %v", err)
	}
	if _, err := NewRemoteSentiment("", "", time.Second).Classify(context.Background(), "x"); !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("empty url should be ErrModelUnavailable, got %v", err)
	}
}

func TestRemoteRecognizer(t *testing.T) {
	text := "Water damage at Acme Storage in Denver on March 3"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Parameters["aggregation_strategy"] != "simple" {
			t.Errorf("expected simple aggregation, got %v", req.Parameters)
		}
		acme := strings.Index(text, "Acme Storage")
		denver := strings.Index(text, "Denver")
		resp := []map[string]any{
			{"entity_group": "ORG", "score": 0.99, "word": "Acme Storage", "start": acme, "end": acme + len("Acme Storage")},
			{"entity_group": "LOC", "score": 0.98, "word": "Denver", "start": denver, "end": denver + len("Denver")},
			{"entity": "B-DATE", "score": 0.9, "word": "March 3"},
			{"entity_group": "MISC", "score": 0.5, "word": "", "start": 500, "end": 501},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	r := NewRemoteRecognizer(server.URL, "", time.Second)
	ents, err := r.Recognize(context.Background(), text)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(ents) != 3 {
		t.Fatalf("expected 3 entities, got %+v", ents)
	}
	if ents[0].Label != "ORG" || ents[0].Text != "Acme Storage" || ents[0].Source != SourceRemote {
		t.Fatalf("ents[0] = %+v", ents[0])
	}
	if ents[1].Label != "LOC" || text[ents[1].StartByte:ents[1].EndByte] != "Denver" {
		t.Fatalf("ents[1] = %+v", ents[1])
	}
	if ents[2].Label != "DATE" || ents[2].Text != "March 3" || ents[2].StartByte != -1 {
		t.Fatalf("ents[2] = %+v", ents[2])
	}

	if got, err := r.Recognize(context.Background(), "   "); err != nil || got != nil {
		t.Fatalf("blank text should skip the call, got %v %v", got, err)
	}
}

func TestRemoteRecognizerCodePointOffsets(t *testing.T) {
	text := "Zoë's car hit a tree in Zürich."
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := []map[string]any{
			{"entity_group": "PER", "score": 0.9, "word": "Zoë", "start": 0, "end": 3},
			{"entity_group": "LOC", "score": 0.99, "word": "Zurich", "start": 24, "end": 30},
			{"entity_group": "LOC", "score": 0.5, "word": "Zürich", "start": 24, "end": 40},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	ents, err := NewRemoteRecognizer(server.URL, "", time.Second).Recognize(context.Background(), text)
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(ents) != 3 {
		t.Fatalf("expected 3 entities, got %+v", ents)
	}
	if ents[0].Text != "Zoë" || text[ents[0].StartByte:ents[0].EndByte] != "Zoë" {
		t.Fatalf("ents[0] = %+v", ents[0])
	}
	if ents[1].Text != "Zürich" || text[ents[1].StartByte:ents[1].EndByte] != "Zürich" {
		t.Fatalf("ents[1] = %+v", ents[1])
	}
	// Out-of-range span falls back to the reported word.
	if ents[2].Text != "Zürich" || ents[2].StartByte != -1 {
		t.Fatalf("ents[2] = %+v", ents[2])
	}
}

func TestRuneSpanToBytes(t *testing.T) {
	text := "né à Zürich"
	cases := []struct {
		start, end int
		want       string
		ok         bool
	}{
		{0, 2, "né", true},
		{5, 11, "Zürich", true},
		{3, 4, "à", true},
		{5, 12, "", false},
		{-1, 2, "", false},
		{4, 4, "", false},
	}
	for _, tc := range cases {
		s, e, ok := runeSpanToBytes(text, tc.start, tc.end)
		if ok != tc.ok {
			t.Fatalf("runeSpanToBytes(%d, %d) ok = %v", tc.start, tc.end, ok)
		}
		if ok && text[s:e] != tc.want {
			t.Fatalf("runeSpanToBytes(%d, %d) = %q, want %q", tc.start, tc.end, text[s:e], tc.want)
		}
	}
}
