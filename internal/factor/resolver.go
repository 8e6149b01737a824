package factor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRule is returned when a custom rule table fails validation.
var ErrInvalidRule = errors.New("invalid emission factor rule")

// Source records how a factor was obtained.
type Source string

const (
	// SourceKeyword means a keyword matched the item and category text.
	SourceKeyword Source = "keyword"
	// SourceCategoryFallback means only the category-level fallback matched.
	SourceCategoryFallback Source = "category_fallback"
	// SourceUnresolved means nothing matched and the factor is zero.
	SourceUnresolved Source = "unresolved"
)

// Resolution is the outcome of resolving one line item.
type Resolution struct {
	Factor  float64
	Source  Source
	Keyword string
}

// Resolver looks up emission factors. It is immutable after construction and
// safe for concurrent use.
type Resolver struct {
	rules     []Rule
	fallbacks []Rule
}

//nolint:gochecknoglobals // validator caches struct metadata; one instance is enough.
var validate = validator.New(validator.WithRequiredStructEnabled())

// NewResolver builds a resolver from explicit rule tables. Both tables are
// copied; nil fallbacks disables the category fallback step.
func NewResolver(rules, fallbacks []Rule) (*Resolver, error) {
	for i, r := range rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("%w: rules[%d]: %w", ErrInvalidRule, i, err)
		}
	}
	for i, r := range fallbacks {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("%w: fallbacks[%d]: %w", ErrInvalidRule, i, err)
		}
	}

	return &Resolver{
		rules:     append([]Rule(nil), rules...),
		fallbacks: append([]Rule(nil), fallbacks...),
	}, nil
}

func validateRule(r Rule) error {
	if math.IsNaN(r.Factor) || math.IsInf(r.Factor, 0) {
		return fmt.Errorf("keyword %q: factor must be finite", r.Keyword)
	}
	return validate.Struct(r)
}

// Default returns a resolver over the built-in tables.
func Default() *Resolver {
	return &Resolver{rules: DefaultRules(), fallbacks: DefaultFallbacks()}
}

// Rules returns a copy of the keyword table in match order.
func (r *Resolver) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Fallbacks returns a copy of the category fallback table in precedence order.
func (r *Resolver) Fallbacks() []Rule {
	return append([]Rule(nil), r.fallbacks...)
}

// Resolve finds the emission factor for an item label and category label.
// It never fails: unknown text resolves to a zero factor.
func (r *Resolver) Resolve(item, category string) Resolution {
	key := strings.ToLower(item + " " + category)
	for _, rule := range r.rules {
		if strings.Contains(key, rule.Keyword) {
			return Resolution{Factor: rule.Factor, Source: SourceKeyword, Keyword: rule.Keyword}
		}
	}

	cat := strings.ToLower(category)
	for _, rule := range r.fallbacks {
		if strings.Contains(cat, rule.Keyword) {
			return Resolution{Factor: rule.Factor, Source: SourceCategoryFallback, Keyword: rule.Keyword}
		}
	}

	return Resolution{Source: SourceUnresolved}
}

// Factor is shorthand for Resolve(item, category).Factor.
func (r *Resolver) Factor(item, category string) float64 {
	return r.Resolve(item, category).Factor
}
