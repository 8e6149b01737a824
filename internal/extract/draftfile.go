package extract

import (
	"context"
	"fmt"
)

// DraftFileProvider serves documents that already contain a draft record,
// such as a saved provider response. It lets the pipeline run offline.
type DraftFileProvider struct{}

// Extract returns the document body unchanged if it is a JSON draft.
func (DraftFileProvider) Extract(_ context.Context, doc Document) ([]byte, error) {
	if !doc.IsDraft() {
		return nil, fmt.Errorf("%w: %s is %s, not a draft record", ErrUnsupportedDocument, doc.Name, doc.MIMEType)
	}
	return doc.Data, nil
}

// Router sends draft records to Drafts and everything else to Documents.
type Router struct {
	Drafts    Provider
	Documents Provider
}

// Extract dispatches on the document type. A nil Documents provider means
// binary documents cannot be analysed.
func (r Router) Extract(ctx context.Context, doc Document) ([]byte, error) {
	if doc.IsDraft() {
		drafts := r.Drafts
		if drafts == nil {
			drafts = DraftFileProvider{}
		}
		return drafts.Extract(ctx, doc)
	}
	if r.Documents == nil {
		return nil, fmt.Errorf("%w: no extraction provider configured for %s", ErrUnsupportedDocument, doc.MIMEType)
	}
	return r.Documents.Extract(ctx, doc)
}
