package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{"claim_id", "severity", "severity_confidence", "fraud_risk", "fraud_score", "summary", "error"}

// WriteJSONL writes one JSON object per item.
func WriteJSONL(w io.Writer, items []*Item) error {
	enc := json.NewEncoder(w)
	for _, it := range items {
		if it == nil {
			continue
		}
		if err := enc.Encode(it); err != nil {
			return fmt.Errorf("encode %s: %w", it.ClaimID, err)
		}
	}
	return nil
}

// WriteCSV writes the flat results table. Failed rows leave the analysis
// columns empty and fill error.
func WriteCSV(w io.Writer, items []*Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		row := []string{it.ClaimID, "", "", "", "", "", it.Error}
		if res := it.Result; res != nil {
			row[1] = string(res.Severity)
			row[2] = strconv.FormatFloat(res.SeverityConfidence, 'f', 2, 64)
			row[3] = string(res.FraudRisk)
			row[4] = strconv.Itoa(res.FraudScore)
			row[5] = res.Summary
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteResults picks the writer by format: "jsonl" (default) or "csv".
func WriteResults(w io.Writer, format string, items []*Item) error {
	switch format {
	case "", "jsonl", "json":
		return WriteJSONL(w, items)
	case "csv":
		return WriteCSV(w, items)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
