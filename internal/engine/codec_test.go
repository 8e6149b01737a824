package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportRoundTrip(t *testing.T) {
	draft := Draft{
		ReportID:    "01HZX3K9Q8W5V2N7M4B6C1D0EF",
		Source:      "invoice-march.pdf",
		CompanyName: "Acme \"Green\" Ltd",
		InvoiceDate: "01/03/2024",
		Confidence:  ConfidenceMedium,
		LineItems: []DraftLineItem{
			{Item: "Diesel", Quantity: ptr(123.456), Unit: "L", Category: "Energy", EvidenceText: "Diesel 123.456 L"},
			{Item: "Mystery", Quantity: nil, Unit: "", Category: "", EvidenceText: "??"},
			{Item: "Returned packaging", Quantity: ptr(-2.5), Unit: "kg", Category: "Raw Material", EvidenceText: "credit"},
		},
	}
	original, err := NewCompiler(nil).Compile(context.Background(), draft)
	require.NoError(t, err)

	data, err := EncodeReport(original)
	require.NoError(t, err)

	decoded, err := DecodeReport(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestReportRoundTrip_LowerCaseConfidence(t *testing.T) {
	original, err := NewCompiler(nil).Compile(context.Background(), Draft{
		Confidence: "high",
		LineItems:  []DraftLineItem{{Item: "Diesel", Quantity: ptr(10), Category: "Energy"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHigh, original.ConfidenceScore)

	data, err := EncodeReport(original)
	require.NoError(t, err)
	decoded, err := DecodeReport(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestReportRoundTrip_Empty(t *testing.T) {
	original, err := NewCompiler(nil).Compile(context.Background(), Draft{})
	require.NoError(t, err)

	data, err := EncodeReport(original)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"line_items": []`)
	assert.Contains(t, string(data), `"total_carbon_emission_kg": 0`)

	decoded, err := DecodeReport(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestDecodeReport_Schema(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr error
	}{
		{name: "current", json: `{"schema_version":"1.0.0","line_items":[]}`},
		{name: "minor bump", json: `{"schema_version":"1.4.0","line_items":[]}`},
		{name: "legacy without version", json: `{"company_name":"x","line_items":[],"confidence_score":"high"}`},
		{name: "next major", json: `{"schema_version":"2.0.0"}`, wantErr: ErrUnsupportedSchema},
		{name: "garbage version", json: `{"schema_version":"banana"}`, wantErr: ErrUnsupportedSchema},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeReport([]byte(tt.json))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDecodeReport_CanonicalisesConfidence(t *testing.T) {
	r, err := DecodeReport([]byte(`{"confidence_score":"hIgH"}`))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceHigh, r.ConfidenceScore)

	r, err = DecodeReport([]byte(`{"confidence_score":null}`))
	require.NoError(t, err)
	assert.Equal(t, ConfidenceLow, r.ConfidenceScore)
}

func TestDecodeReport_InvalidJSON(t *testing.T) {
	_, err := DecodeReport([]byte(`{"line_items":`))
	require.Error(t, err)
}
