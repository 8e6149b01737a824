package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/carbonledger/esgscan/internal/factor"
)

// SchemaVersion is stamped on every compiled report.
const SchemaVersion = "1.0.0"

// Confidence is the extraction-quality grade attached to a document.
type Confidence string

const (
	// ConfidenceHigh means clear text and values.
	ConfidenceHigh Confidence = "High"
	// ConfidenceMedium means minor ambiguity.
	ConfidenceMedium Confidence = "Medium"
	// ConfidenceLow means a poor scan or unclear invoice. Unknown input maps here.
	ConfidenceLow Confidence = "Low"
)

// ParseConfidence canonicalises a free-text confidence grade. The second
// return value is false when the input was not recognised and Low was assumed.
func ParseConfidence(s string) (Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh, true
	case "medium":
		return ConfidenceMedium, true
	case "low":
		return ConfidenceLow, true
	default:
		return ConfidenceLow, false
	}
}

// UnmarshalJSON accepts any casing and maps unknown or null grades to Low.
func (c *Confidence) UnmarshalJSON(data []byte) error {
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parsing confidence score: %w", err)
	}
	if s == nil {
		*c = ConfidenceLow
		return nil
	}
	*c, _ = ParseConfidence(*s)
	return nil
}

// DraftLineItem is one extracted invoice row after boundary validation.
// Quantity is nil when the provider did not supply a usable number.
type DraftLineItem struct {
	Item         string
	Quantity     *float64
	Unit         string
	Category     string
	EvidenceText string
}

// Draft is the validated form of an extraction result, ready to compile.
type Draft struct {
	ReportID    string
	Source      string
	CompanyName string
	InvoiceDate string
	LineItems   []DraftLineItem
	Confidence  Confidence
}

// LineItem is a finalized invoice row with its emission figures.
type LineItem struct {
	Item             string        `json:"item"`
	Quantity         *float64      `json:"quantity"`
	Unit             string        `json:"unit"`
	Category         string        `json:"category"`
	EmissionFactor   *float64      `json:"emission_factor"`
	CarbonEmissionKg *float64      `json:"carbon_emission_kg"`
	EvidenceText     string        `json:"evidence_text"`
	FactorSource     factor.Source `json:"factor_source,omitempty"`
	MatchedKeyword   string        `json:"matched_keyword,omitempty"`
}

// Emission returns the item's emission in kg, treating null as zero.
func (li LineItem) Emission() float64 {
	if li.CarbonEmissionKg == nil {
		return 0
	}
	return *li.CarbonEmissionKg
}

// Report is a compiled, immutable snapshot of one analysed document.
// Re-analysis produces a new Report; nothing in this module edits one in place.
type Report struct {
	SchemaVersion         string     `json:"schema_version,omitempty"`
	ID                    string     `json:"report_id,omitempty"`
	Source                string     `json:"source,omitempty"`
	CompanyName           string     `json:"company_name"`
	InvoiceDate           string     `json:"invoice_date"`
	LineItems             []LineItem `json:"line_items"`
	TotalCarbonEmissionKg float64    `json:"total_carbon_emission_kg"`
	ConfidenceScore       Confidence `json:"confidence_score"`
}
