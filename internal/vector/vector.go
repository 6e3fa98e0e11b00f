// Package vector holds the shapes shared between the alignment worker,
// which persists row embeddings, and the review feature, which queries
// them.
package vector

// Kind distinguishes which side of an alignment a vector belongs to.
const (
	KindReference = "reference"
	KindTarget    = "target"
)

// RowVector is one persisted row embedding, keyed by job, side, and
// content id.
type RowVector struct {
	JobID     string
	ContentID string
	Kind      string
	Content   string
	Position  int
	Values    []float32
}

// Candidate is a nearest-neighbour hit from the vector store.
type Candidate struct {
	ContentID string  `json:"content_id"`
	Content   string  `json:"content"`
	Score     float32 `json:"score"`
}
