// Package extract talks to the document-understanding service that turns an
// invoice into a draft record.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// MIME types accepted as analysis input.
const (
	MIMEPDF  = "application/pdf"
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
	MIMEWEBP = "image/webp"
	MIMEJSON = "application/json"
)

// maxDocumentBytes caps what is read into memory and sent inline.
const maxDocumentBytes = 20 << 20

// Errors returned while loading or extracting documents.
var (
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrDocumentTooLarge    = errors.New("document too large")
	ErrNoResponse          = errors.New("extraction provider returned no content")
	ErrMissingAPIKey       = errors.New("extraction API key not set")
)

// Document is one invoice to analyse.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
}

// IsDraft reports whether the document is already an extracted draft record.
func (d Document) IsDraft() bool {
	return d.MIMEType == MIMEJSON
}

// Provider extracts a draft record from a document. Implementations return
// the provider's raw JSON text; validation happens in the ingest package.
type Provider interface {
	Extract(ctx context.Context, doc Document) ([]byte, error)
}

// LoadDocument reads path and sniffs its content type. Only PDFs, common
// image formats and JSON draft records are accepted.
func LoadDocument(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading document %s: %w", path, err)
	}
	if info.Size() > maxDocumentBytes {
		return Document{}, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrDocumentTooLarge, path, info.Size(), maxDocumentBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading document %s: %w", path, err)
	}

	mime, err := DetectMIME(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", path, err)
	}

	return Document{Name: filepath.Base(path), MIMEType: mime, Data: data}, nil
}

// DetectMIME returns the accepted MIME type for data, or ErrUnsupportedDocument.
func DetectMIME(data []byte) (string, error) {
	detected := mimetype.Detect(data)
	for _, accepted := range []string{MIMEPDF, MIMEPNG, MIMEJPEG, MIMEWEBP, MIMEJSON} {
		if detected.Is(accepted) {
			return accepted, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedDocument, detected.String())
}
