package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonledger/esgscan/internal/config"
	"github.com/carbonledger/esgscan/internal/extract"
	"github.com/carbonledger/esgscan/internal/pipeline"
)

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf)

	p(pipeline.Progress{Done: 1, Total: 2, Last: "jan.pdf", Elapsed: 1400 * time.Millisecond})
	assert.Contains(t, buf.String(), "analysed 1/2 1s, last jan.pdf")
	assert.NotContains(t, buf.String(), "\n")

	buf.Reset()
	p(pipeline.Progress{Done: 2, Failed: 1, Total: 2, Last: "feb.pdf", Elapsed: 3 * time.Second})
	assert.Contains(t, buf.String(), "analysed 2/2 (1 failed) 3s, last feb.pdf\n")
}

type countingProvider struct {
	out   string
	calls int
}

func (c *countingProvider) Extract(context.Context, extract.Document) ([]byte, error) {
	c.calls++
	return []byte(c.out), nil
}

func TestWithCache_OnlyCachesParseableDrafts(t *testing.T) {
	cfg := config.Defaults()
	cfg.Cache.Directory = t.TempDir()
	doc := extract.Document{Name: "a.pdf", MIMEType: extract.MIMEPDF, Data: []byte("%PDF-1.4 invoice")}
	ctx := context.Background()

	tests := []struct {
		name      string
		out       string
		wantCalls int
	}{
		{name: "prose", out: "Sorry, I cannot read this invoice.", wantCalls: 3},
		{name: "truncated", out: `{"line_items":[{"item":"Diesel","quantity":500`, wantCalls: 3},
		{name: "draft", out: `{"company_name":"Acme","line_items":[{"item":"Diesel","quantity":5}]}`, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &countingProvider{out: tt.out}
			p := withCache(ctx, cfg, next, "test|"+tt.name)
			for range 3 {
				_, err := p.Extract(ctx, doc)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, next.calls)
		})
	}
}

func TestWithCache_Disabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Cache.Enabled = false
	next := &countingProvider{out: "{}"}

	assert.Same(t, next, withCache(context.Background(), cfg, next, "ns"))
}
