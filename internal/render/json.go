package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/carbonledger/esgscan/internal/engine"
)

// ComparisonDocument is the JSON shape of a comparison export.
type ComparisonDocument struct {
	engine.ComparisonResult

	Narrative   string `json:"narrative"`
	Equivalency string `json:"equivalency,omitempty"`
}

// WriteReportJSON writes the report as a round-trippable audit export.
func WriteReportJSON(w io.Writer, r engine.Report) error {
	data, err := engine.EncodeReport(r)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// WriteComparisonJSON writes both reports, the derived comparison and the
// narrative. Numbers are written unrounded.
func WriteComparisonJSON(w io.Writer, c engine.ComparisonResult, opts Options) error {
	doc := NewComparisonDocument(c, opts)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding comparison: %w", err)
	}
	return nil
}

// NewComparisonDocument attaches the narrative and equivalency text to c.
func NewComparisonDocument(c engine.ComparisonResult, opts Options) ComparisonDocument {
	return ComparisonDocument{
		ComparisonResult: c,
		Narrative:        Narrative(c, opts.precision()),
		Equivalency:      deltaEquivalencyText(c.DeltaKg),
	}
}

// WriteRawJSON pretty-prints the extraction output exactly as received, for
// the raw data view. Input that is not valid JSON is written unchanged.
func WriteRawJSON(w io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(raw)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}
	_, err := w.Write(buf.Bytes())
	return err
}
