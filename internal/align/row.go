package align

import (
	"fmt"
	"strings"
)

// Record is the raw input shape handed over by the CSV collaborator.
type Record struct {
	ID      string `json:"content_id"`
	Content string `json:"content"`
}

// SkipReason marks a row as excluded from embedding and matching. Skipped
// rows always render as unmatched in the final output.
type SkipReason string

const (
	SkipNone        SkipReason = ""
	SkipEmpty       SkipReason = "empty"
	SkipTooShort    SkipReason = "too_short"
	SkipTooLong     SkipReason = "too_long"
	SkipEmbedFailed SkipReason = "embed_failed"
)

// ContentRow is a single content unit. Content is immutable once loaded;
// Normalized and Embedding are populated in place by the pipeline stages.
type ContentRow struct {
	ID         string
	Content    string
	Normalized string
	Embedding  []float32
	Skip       SkipReason
}

// Eligible reports whether the row participates in embedding.
func (r *ContentRow) Eligible() bool {
	return r.Skip == SkipNone
}

// Embedded reports whether the row carries a vector and participates in
// matching.
func (r *ContentRow) Embedded() bool {
	return r.Skip == SkipNone && len(r.Embedding) > 0
}

// ContentSet is an ordered sequence of rows from one source file. Order is
// preserved for stable output only; matching does not depend on it.
type ContentSet struct {
	Rows []*ContentRow
}

// NewContentSet validates records and builds a set. Duplicate or empty ids
// within one set are a caller error, not something to silently merge.
func NewContentSet(records []Record) (*ContentSet, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: content set is empty", ErrValidation)
	}

	seen := make(map[string]struct{}, len(records))
	rows := make([]*ContentRow, 0, len(records))
	for i, rec := range records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			return nil, fmt.Errorf("%w: row %d has an empty content id", ErrValidation, i+1)
		}
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: duplicate content id %q", ErrValidation, id)
		}
		seen[id] = struct{}{}
		rows = append(rows, &ContentRow{ID: id, Content: rec.Content})
	}
	return &ContentSet{Rows: rows}, nil
}

// Get returns the row with the given id, or nil.
func (s *ContentSet) Get(id string) *ContentRow {
	for _, r := range s.Rows {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// EmbeddedRows returns the rows that participate in matching.
func (s *ContentSet) EmbeddedRows() []*ContentRow {
	out := make([]*ContentRow, 0, len(s.Rows))
	for _, r := range s.Rows {
		if r.Embedded() {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of rows in the set.
func (s *ContentSet) Len() int {
	return len(s.Rows)
}
