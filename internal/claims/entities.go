package claims

import (
	"context"
	"regexp"

	"github.com/claimlens/claimlens/internal/nlp"
)

// "2019 Honda Accord" style mentions: year, make, model.
var vehicleRe = regexp.MustCompile(`\b(?:19|20)\d{2}\s+[A-Z][a-z]+\s+[A-Z][a-z-]+\b`)

// Extractor builds an EntityBundle from recognizer output plus the vehicle pattern.
type Extractor struct {
	recognizer nlp.Recognizer
}

// NewExtractor returns an Extractor over rec.
func NewExtractor(rec nlp.Recognizer) *Extractor {
	return &Extractor{recognizer: rec}
}

// Extract runs the recognizer and the vehicle scan independently over text.
// GPE and LOC become locations, DATE dates, MONEY money and ORG organizations.
// Other labels are dropped.
func (e *Extractor) Extract(ctx context.Context, text string) (EntityBundle, error) {
	bundle := NewEntityBundle()

	ents, err := e.recognizer.Recognize(ctx, text)
	if err != nil {
		return bundle, err
	}
	for _, ent := range ents {
		switch ent.Label {
		case "GPE", "LOC":
			bundle.Locations = append(bundle.Locations, ent.Text)
		case "DATE":
			bundle.Dates = append(bundle.Dates, ent.Text)
		case "MONEY":
			bundle.Money = append(bundle.Money, ent.Text)
		case "ORG":
			bundle.Organizations = append(bundle.Organizations, ent.Text)
		}
	}

	bundle.Vehicles = append(bundle.Vehicles, FindVehicles(text)...)
	return bundle, nil
}

// FindVehicles returns every "YYYY Make Model" match in text, in order.
func FindVehicles(text string) []string {
	return vehicleRe.FindAllString(text, -1)
}
