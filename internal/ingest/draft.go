// Package ingest converts raw extraction-provider output into engine drafts.
//
// The provider is untrusted: its JSON may be wrapped, truncated or loosely
// typed. This package is the only place that deals with that; everything
// downstream works on engine.Draft.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"github.com/carbonledger/esgscan/internal/engine"
	"github.com/carbonledger/esgscan/internal/logging"
)

// Draft record field names as emitted by the extraction provider.
const (
	fieldCompanyName  = "company_name"
	fieldInvoiceDate  = "invoice_date"
	fieldLineItems    = "line_items"
	fieldConfidence   = "confidence_score"
	fieldItem         = "item"
	fieldQuantity     = "quantity"
	fieldUnit         = "unit"
	fieldCategory     = "category"
	fieldEvidenceText = "evidence_text"
)

// Errors returned by ParseDraft. Both mean the whole document is unusable.
var (
	ErrEmptyDraft     = errors.New("empty draft record")
	ErrMalformedDraft = errors.New("malformed draft record")
)

// ParseDraft converts a provider response into a validated engine.Draft.
//
// The document must be a JSON object and line_items, when present, must be an
// array. A code fence around the object is stripped. Syntax slips inside a
// complete object, such as trailing commas, are repaired; a truncated or
// unbalanced document is not, and neither is one whose repaired form carries
// none of the draft fields. Anything else is ErrMalformedDraft. Inside that
// shape every field is optional: missing or unusable values become "", a nil
// quantity, or Low confidence, and a line item that is not an object becomes
// an empty row that contributes nothing.
func ParseDraft(ctx context.Context, data []byte) (engine.Draft, error) {
	log := logging.FromContext(ctx)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return engine.Draft{}, ErrEmptyDraft
	}

	repaired := false
	if !json.Valid(trimmed) {
		trimmed = stripCodeFence(trimmed)
	}
	if !json.Valid(trimmed) {
		if err := checkBalanced(trimmed); err != nil {
			return engine.Draft{}, fmt.Errorf("%w: %w", ErrMalformedDraft, err)
		}
		fixed, err := jsonrepair.RepairJSON(string(trimmed))
		if err != nil {
			return engine.Draft{}, fmt.Errorf("%w: %w", ErrMalformedDraft, err)
		}
		log.Warn().
			Ctx(ctx).
			Str("component", "ingest").
			Str("operation", "parse_draft").
			Int("original_bytes", len(trimmed)).
			Int("repaired_bytes", len(fixed)).
			Msg("draft record was not valid JSON, using repaired form")
		trimmed = []byte(fixed)
		repaired = true
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return engine.Draft{}, fmt.Errorf("%w: expected a JSON object: %w", ErrMalformedDraft, err)
	}
	if top == nil {
		return engine.Draft{}, fmt.Errorf("%w: draft record is null", ErrMalformedDraft)
	}
	if repaired && !hasDraftField(top) {
		return engine.Draft{}, fmt.Errorf("%w: repaired record has no draft fields", ErrMalformedDraft)
	}

	var rawItems []json.RawMessage
	if raw, ok := top[fieldLineItems]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &rawItems); err != nil {
			return engine.Draft{}, fmt.Errorf("%w: line_items must be an array: %w", ErrMalformedDraft, err)
		}
	}

	d := &decoder{ctx: ctx}
	draft := engine.Draft{
		CompanyName: d.text(top, fieldCompanyName, -1),
		InvoiceDate: d.text(top, fieldInvoiceDate, -1),
		LineItems:   make([]engine.DraftLineItem, 0, len(rawItems)),
	}

	confidenceText := d.text(top, fieldConfidence, -1)
	confidence, ok := engine.ParseConfidence(confidenceText)
	if !ok {
		d.warn(fieldConfidence, -1, fmt.Sprintf("unrecognised confidence %q, assuming Low", confidenceText))
	}
	draft.Confidence = confidence

	for i, raw := range rawItems {
		draft.LineItems = append(draft.LineItems, d.lineItem(raw, i))
	}

	log.Debug().
		Ctx(ctx).
		Str("component", "ingest").
		Str("operation", "parse_draft").
		Int("line_items", len(draft.LineItems)).
		Int("warnings", d.warnings).
		Msg("draft record parsed")

	return draft, nil
}

var errTruncated = errors.New("document is truncated")

// stripCodeFence removes a markdown code fence (``` or ```json) around data.
func stripCodeFence(data []byte) []byte {
	if !bytes.HasPrefix(data, []byte("```")) {
		return data
	}
	body := data[3:]
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = bytes.TrimPrefix(body, []byte("json"))
	}
	body = bytes.TrimSpace(body)
	body = bytes.TrimSuffix(body, []byte("```"))
	return bytes.TrimSpace(body)
}

// checkBalanced scans data for brackets outside strings. Rows lost to a cut
// response must not be papered over by adding closing brackets.
func checkBalanced(data []byte) error {
	var stack []byte
	inString, escaped := false, false
	for i, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			open := byte('{')
			if c == ']' {
				open = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != open {
				return fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if inString || len(stack) > 0 {
		return errTruncated
	}
	return nil
}

func hasDraftField(top map[string]json.RawMessage) bool {
	for _, key := range []string{fieldCompanyName, fieldLineItems, fieldConfidence} {
		if _, ok := top[key]; ok {
			return true
		}
	}
	return false
}

// decoder pulls loosely-typed fields out of raw JSON and logs every value it
// had to default.
type decoder struct {
	ctx      context.Context
	warnings int
}

func (d *decoder) warn(field string, index int, msg string) {
	d.warnings++
	ev := logging.FromContext(d.ctx).Warn().
		Ctx(d.ctx).
		Str("component", "ingest").
		Str("operation", "parse_draft").
		Str("field", field)
	if index >= 0 {
		ev = ev.Int("line_item", index)
	}
	ev.Msg(msg)
}

func (d *decoder) lineItem(raw json.RawMessage, index int) engine.DraftLineItem {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		d.warn(fieldLineItems, index, "line item is not an object, treating as empty")
		return engine.DraftLineItem{}
	}

	return engine.DraftLineItem{
		Item:         d.text(obj, fieldItem, index),
		Quantity:     d.quantity(obj, index),
		Unit:         d.text(obj, fieldUnit, index),
		Category:     d.text(obj, fieldCategory, index),
		EvidenceText: d.text(obj, fieldEvidenceText, index),
	}
}

// text returns a string field verbatim. Numbers and booleans keep their JSON
// spelling; objects and arrays are dropped.
func (d *decoder) text(obj map[string]json.RawMessage, field string, index int) string {
	raw, ok := obj[field]
	if !ok || isNull(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	switch raw[0] {
	case '{', '[':
		d.warn(field, index, "expected text, got structured value")
		return ""
	default:
		return string(raw)
	}
}

// quantity accepts a JSON number or a numeric string. Anything else, and any
// non-finite value, yields nil.
func (d *decoder) quantity(obj map[string]json.RawMessage, index int) *float64 {
	raw, ok := obj[fieldQuantity]
	if !ok || isNull(raw) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, ok := parseNumber(s); ok {
			return &v
		}
	}

	d.warn(fieldQuantity, index, fmt.Sprintf("non-numeric quantity %s, treating as absent", string(raw)))
	return nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v, err = strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}
