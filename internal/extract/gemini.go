package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/carbonledger/esgscan/internal/logging"
)

// Gemini defaults.
const (
	DefaultModel     = "gemini-2.5-pro"
	DefaultAPIKeyEnv = "GEMINI_API_KEY"
	DefaultTimeout   = 2 * time.Minute
)

// PromptVersion identifies the prompt and response schema below. Bump it
// whenever either changes so cached responses from the old prompt are not
// reused.
const PromptVersion = "2"

// extractionPrompt accompanies the document in every request.
const extractionPrompt = "Process this invoice. Extract exact quantity and units. Do not calculate emissions."

// systemInstruction tells the model what to extract and how to categorise it.
// Emission factors are deliberately absent: they are applied in code.
const systemInstruction = `You extract carbon-relevant data from supplier invoices for Scope-3 accounting.

Rules:
1. Extract the same data every time you see the same document.
2. Extract invoice rows one by one. Never merge or summarise rows.
3. If a value is ambiguous, return null instead of guessing.

Categories:
- Energy: diesel, petrol, electricity, LPG, gas
- OpEx: paper, printing, office supplies
- Raw Material: plastic, packaging, chemicals

For the invoice return the company name and invoice date. For every row with
a carbon impact return the item name, the numeric quantity, the unit
(liters, kWh, kg or units), the category and the exact invoice line as
evidence text. Grade the whole extraction High (clear text and values),
Medium (minor ambiguity) or Low (poor scan or unclear invoice).`

// GeminiConfig configures GeminiProvider.
type GeminiConfig struct {
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration
}

// CacheNamespace identifies every request setting that shapes a response.
func (c GeminiConfig) CacheNamespace() string {
	model := c.Model
	if model == "" {
		model = DefaultModel
	}
	return fmt.Sprintf("gemini|model=%s|prompt=%s|temperature=%g", model, PromptVersion, c.Temperature)
}

// GeminiProvider extracts draft records with the Gemini API.
type GeminiProvider struct {
	client *genai.Client
	cfg    GeminiConfig
}

var _ Provider = (*GeminiProvider)(nil)

// CacheNamespace returns the namespace for caching this provider's responses.
func (p *GeminiProvider) CacheNamespace() string {
	return p.cfg.CacheNamespace()
}

// NewGeminiProvider creates a client for the Gemini API. An empty APIKey is
// read from GEMINI_API_KEY.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(DefaultAPIKeyEnv)
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating GenAI client: %w", err)
	}
	return &GeminiProvider{client: client, cfg: cfg}, nil
}

// Extract sends the document inline and returns the model's JSON response.
func (p *GeminiProvider) Extract(ctx context.Context, doc Document) ([]byte, error) {
	log := logging.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(doc.Data, doc.MIMEType),
			genai.NewPartFromText(extractionPrompt),
		}, genai.RoleUser),
	}

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, p.generateConfig())
	if err != nil {
		return nil, fmt.Errorf("gemini extraction of %s failed: %w", doc.Name, err)
	}

	text := strings.TrimSpace(resp.Text())
	log.Debug().
		Ctx(ctx).
		Str("component", "extract").
		Str("operation", "gemini_generate").
		Str("model", p.cfg.Model).
		Str("document", doc.Name).
		Int("response_bytes", len(text)).
		Dur("duration", time.Since(start)).
		Msg("extraction response received")

	if text == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoResponse, doc.Name)
	}
	return []byte(text), nil
}

func (p *GeminiProvider) generateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(p.cfg.Temperature),
		ResponseMIMEType: MIMEJSON,
		ResponseSchema:   draftSchema(),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}
}

// draftSchema describes the draft record. Emission fields are left out so the
// model cannot supply them.
func draftSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"company_name": str("Name of the company issuing the invoice"),
			"invoice_date": str("Date of the invoice"),
			"line_items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"item":          str("Name of the item"),
						"quantity":      {Type: genai.TypeNumber, Description: "Numeric quantity", Nullable: genai.Ptr(true)},
						"unit":          str("Unit of measure, e.g. liters, kWh, kg"),
						"category":      str("ESG category: Energy, OpEx or Raw Material"),
						"evidence_text": str("Exact invoice text the row was extracted from"),
					},
					Required:         []string{"item", "quantity", "unit", "evidence_text"},
					PropertyOrdering: []string{"item", "quantity", "unit", "category", "evidence_text"},
				},
			},
			"confidence_score": str("Confidence level: High, Medium or Low"),
		},
		Required:         []string{"company_name", "line_items", "confidence_score"},
		PropertyOrdering: []string{"company_name", "invoice_date", "line_items", "confidence_score"},
	}
}
