package nlp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// modelMeta is what we need from a Hugging Face export directory.
type modelMeta struct {
	Labels            []string
	NumLabels         int
	RequiresTokenType bool
	LowerCase         bool
}

// loadModelMeta reads config.json, label_map.json and tokenizer_config.json from dir.
// Missing files are not errors; callers validate what they need.
func loadModelMeta(dir string) (modelMeta, error) {
	meta := modelMeta{LowerCase: true}

	if data, err := os.ReadFile(filepath.Join(dir, "config.json")); err == nil {
		var cfg struct {
			NumLabels     int               `json:"num_labels"`
			ID2Label      map[string]string `json:"id2label"`
			Label2ID      map[string]int    `json:"label2id"`
			TypeVocabSize int               `json:"type_vocab_size"`
			ModelType     string            `json:"model_type"`
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return meta, err
		}
		meta.Labels = labelsFromIDMap(cfg.ID2Label)
		if len(meta.Labels) == 0 && len(cfg.Label2ID) > 0 {
			meta.Labels = labelsFromLabel2ID(cfg.Label2ID)
		}
		meta.NumLabels = cfg.NumLabels
		// DistilBERT exports report no token types even though BERT ones do.
		meta.RequiresTokenType = cfg.TypeVocabSize > 0 && !strings.EqualFold(cfg.ModelType, "distilbert")
	}

	if data, err := os.ReadFile(filepath.Join(dir, "label_map.json")); err == nil {
		var list []string
		if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
			meta.Labels = list
		} else {
			var idMap map[string]string
			if err := json.Unmarshal(data, &idMap); err == nil {
				meta.Labels = labelsFromIDMap(idMap)
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json")); err == nil {
		var tc struct {
			DoLowerCase *bool `json:"do_lower_case"`
		}
		if err := json.Unmarshal(data, &tc); err == nil && tc.DoLowerCase != nil {
			meta.LowerCase = *tc.DoLowerCase
		}
	}

	if len(meta.Labels) > 0 {
		meta.NumLabels = len(meta.Labels)
	}
	return meta, nil
}

func labelsFromIDMap(id2label map[string]string) []string {
	if len(id2label) == 0 {
		return nil
	}
	maxID := -1
	parsed := make(map[int]string, len(id2label))
	for k, v := range id2label {
		id, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || id < 0 {
			continue
		}
		parsed[id] = v
		maxID = max(maxID, id)
	}
	if maxID < 0 {
		return nil
	}
	labels := make([]string, maxID+1)
	for id, lbl := range parsed {
		labels[id] = lbl
	}
	return labels
}

func labelsFromLabel2ID(label2id map[string]int) []string {
	maxID := -1
	for _, id := range label2id {
		maxID = max(maxID, id)
	}
	if maxID < 0 {
		return nil
	}
	labels := make([]string, maxID+1)
	for lbl, id := range label2id {
		if id >= 0 {
			labels[id] = lbl
		}
	}
	return labels
}
