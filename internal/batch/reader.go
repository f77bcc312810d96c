package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Claim is one input row.
type Claim struct {
	ID             string `json:"claim_id"`
	Description    string `json:"description"`
	ActualSeverity string `json:"actual_severity,omitempty"`
}

// ErrNoDescriptionColumn is returned when the CSV header lacks "description".
var ErrNoDescriptionColumn = errors.New("csv must contain a 'description' column")

// ReadClaimsFile reads claims from a CSV file on disk.
func ReadClaimsFile(path string) ([]Claim, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open claims file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ReadClaims(f)
}

// ReadClaims parses a CSV with a header row. Only "description" is required;
// rows without a claim_id get CLM001, CLM002, ... by position. Extra columns
// are ignored.
func ReadClaims(r io.Reader) ([]Claim, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoDescriptionColumn
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	descCol, ok := cols["description"]
	if !ok {
		return nil, ErrNoDescriptionColumn
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Claim
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		c := Claim{
			ID:             field(rec, "claim_id"),
			ActualSeverity: field(rec, "actual_severity"),
		}
		if descCol < len(rec) {
			c.Description = rec[descCol]
		}
		if c.ID == "" {
			c.ID = DefaultClaimID(row - 1)
		}
		out = append(out, c)
	}
	return out, nil
}

// DefaultClaimID names the claim at zero-based position i: CLM001, CLM002, ...
func DefaultClaimID(i int) string {
	return fmt.Sprintf("CLM%03d", i+1)
}
