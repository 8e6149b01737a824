package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/carbonledger/esgscan/internal/factor"
	"github.com/carbonledger/esgscan/internal/logging"
)

// ErrNonFiniteEmission is returned by Compile when an emission or the report
// total overflows. Such a report cannot be serialised, so the document fails.
var ErrNonFiniteEmission = errors.New("emission is not a finite number")

// Compiler turns drafts into finalized reports.
type Compiler struct {
	resolver *factor.Resolver
}

// NewCompiler returns a compiler that resolves factors with r.
// A nil resolver means the built-in table.
func NewCompiler(r *factor.Resolver) *Compiler {
	if r == nil {
		r = factor.Default()
	}
	return &Compiler{resolver: r}
}

// Compile finalizes a draft. Each item's emission is exactly
// (quantity or 0) * factor, with no rounding; negative quantities pass through.
// Textual fields, including evidence text, are copied verbatim. The
// confidence grade is canonicalised. The only error is ErrNonFiniteEmission.
func (c *Compiler) Compile(ctx context.Context, draft Draft) (Report, error) {
	log := logging.FromContext(ctx)

	items := make([]LineItem, 0, len(draft.LineItems))
	var total float64
	for i, d := range draft.LineItems {
		res := c.resolver.Resolve(d.Item, d.Category)

		var qty float64
		if d.Quantity != nil {
			qty = *d.Quantity
		}
		emission := qty * res.Factor
		if !isFinite(emission) {
			return Report{}, fmt.Errorf("%w: line item %d (%q): %g x %g", ErrNonFiniteEmission, i, d.Item, qty, res.Factor)
		}
		total += emission
		if !isFinite(total) {
			return Report{}, fmt.Errorf("%w: total overflows at line item %d (%q)", ErrNonFiniteEmission, i, d.Item)
		}

		if res.Source == factor.SourceUnresolved {
			log.Debug().
				Ctx(ctx).
				Str("component", "engine").
				Str("operation", "compile").
				Int("index", i).
				Str("item", d.Item).
				Str("category", d.Category).
				Msg("no emission factor matched, contributing zero")
		}

		items = append(items, LineItem{
			Item:             d.Item,
			Quantity:         copyFloat(d.Quantity),
			Unit:             d.Unit,
			Category:         d.Category,
			EmissionFactor:   &res.Factor,
			CarbonEmissionKg: &emission,
			EvidenceText:     d.EvidenceText,
			FactorSource:     res.Source,
			MatchedKeyword:   res.Keyword,
		})
	}

	confidence, _ := ParseConfidence(string(draft.Confidence))

	log.Debug().
		Ctx(ctx).
		Str("component", "engine").
		Str("operation", "compile").
		Str("report_id", draft.ReportID).
		Int("line_items", len(items)).
		Float64("total_kg", total).
		Msg("report compiled")

	return Report{
		SchemaVersion:         SchemaVersion,
		ID:                    draft.ReportID,
		Source:                draft.Source,
		CompanyName:           draft.CompanyName,
		InvoiceDate:           draft.InvoiceDate,
		LineItems:             items,
		TotalCarbonEmissionKg: total,
		ConfidenceScore:       confidence,
	}, nil
}

func isFinite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

// TotalEmission sums the emissions of items, treating null as zero.
func TotalEmission(items []LineItem) float64 {
	var total float64
	for _, li := range items {
		total += li.Emission()
	}
	return total
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
