package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/claimlens/claimlens/internal/nlp"
)

func TestExtractMapsLabels(t *testing.T) {
	rec := stubRecognizer{entities: []nlp.Entity{
		{Label: "GPE", Text: "Denver"},
		{Label: "PERSON", Text: "Jane Doe"},
		{Label: "DATE", Text: "March 3"},
		{Label: "LOC", Text: "Lake Tahoe"},
		{Label: "MONEY", Text: "$1,200"},
		{Label: "ORG", Text: "Acme Insurance"},
		{Label: "ORG", Text: "Acme Insurance"},
		{Label: "CARDINAL", Text: "two"},
	}}
	bundle, err := NewExtractor(rec).Extract(context.Background(), "irrelevant")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	check := func(name string, got, want []string) {
		t.Helper()
		if strings.Join(got, "|") != strings.Join(want, "|") {
			t.Fatalf("%s = %q, want %q", name, got, want)
		}
	}
	check("locations", bundle.Locations, []string{"Denver", "Lake Tahoe"})
	check("dates", bundle.Dates, []string{"March 3"})
	check("money", bundle.Money, []string{"$1,200"})
	check("organizations", bundle.Organizations, []string{"Acme Insurance", "Acme Insurance"})
	check("vehicles", bundle.Vehicles, nil)
	if bundle.Vehicles == nil {
		t.Fatal("vehicles must be an empty slice, not nil")
	}
}

func TestFindVehicles(t *testing.T) {
	cases := []struct {
		text string
		want []string
	}{
		{"Rear-ended my 2019 Honda Accord at a light.", []string{"2019 Honda Accord"}},
		{"A 2018 Toyota Camry hit the 2021 Toyota Land-cruiser.", []string{"2018 Toyota Camry", "2021 Toyota Land-cruiser"}},
		{"My 1999 Jeep Grand Cherokee stalled.", []string{"1999 Jeep Grand"}},
		{"An 1899 Ford Model was on display.", nil},
		{"A 2019 honda accord was parked.", nil},
		{"Serial 12019 Honda Accord.", nil},
		{"My Toyota Camry was keyed.", nil},
	}
	for _, tc := range cases {
		got := FindVehicles(tc.text)
		if strings.Join(got, "|") != strings.Join(tc.want, "|") {
			t.Fatalf("FindVehicles(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestExtractRunsVehicleScanIndependently(t *testing.T) {
	text := "The 2020 Subaru Outback was damaged in Boulder."
	rec := stubRecognizer{entities: []nlp.Entity{{Label: "GPE", Text: "Boulder"}}}
	bundle, err := NewExtractor(rec).Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(bundle.Vehicles) != 1 || bundle.Vehicles[0] != "2020 Subaru Outback" {
		t.Fatalf("vehicles = %q", bundle.Vehicles)
	}
	if len(bundle.Locations) != 1 {
		t.Fatalf("locations = %q", bundle.Locations)
	}
}

func TestExtractPropagatesRecognizerError(t *testing.T) {
	rec := stubRecognizer{err: fmt.Errorf("ner: %w", nlp.ErrModelUnavailable)}
	if _, err := NewExtractor(rec).Extract(context.Background(), "x"); !errors.Is(err, nlp.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}
