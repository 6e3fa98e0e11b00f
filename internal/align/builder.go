package align

// AlignedRow is one line of the final output: a reference row paired with
// its best-matching target row, or with a placeholder when no acceptable
// match exists. Orphaned target rows are appended with an empty reference
// side when configured.
type AlignedRow struct {
	ReferenceID      string   `json:"reference_id"`
	ReferenceContent string   `json:"reference_content"`
	TargetID         string   `json:"target_id,omitempty"`
	TargetContent    string   `json:"target_content"`
	MatchScore       *float32 `json:"match_score,omitempty"`
	Orphan           bool     `json:"orphan,omitempty"`
}

// Matched reports whether the row carries an accepted target match.
func (r AlignedRow) Matched() bool {
	return !r.Orphan && r.TargetID != ""
}

// BuildOptions control placeholder rendering and orphan export.
type BuildOptions struct {
	// Placeholder stands in for target content on unmatched reference
	// rows when UnmatchedAsPlaceholder is set; otherwise unmatched rows
	// get empty target content.
	Placeholder            string
	UnmatchedAsPlaceholder bool

	// IncludeOrphans appends never-claimed target rows after the
	// reference rows.
	IncludeOrphans bool
}

// Build produces exactly one AlignedRow per reference row, in the reference
// set's original order, pulling original (pre-normalization) content for
// both sides. Reference rows are never dropped and target content is never
// fabricated.
func Build(reference, target *ContentSet, assignment Assignment, opts BuildOptions) []AlignedRow {
	rows := make([]AlignedRow, 0, reference.Len())
	for _, ref := range reference.Rows {
		row := AlignedRow{
			ReferenceID:      ref.ID,
			ReferenceContent: ref.Content,
		}
		if match, ok := assignment.Pairs[ref.ID]; ok {
			tgt := target.Get(match.TargetID)
			score := match.Score
			row.TargetID = match.TargetID
			row.TargetContent = tgt.Content
			row.MatchScore = &score
		} else if opts.UnmatchedAsPlaceholder {
			row.TargetContent = opts.Placeholder
		}
		rows = append(rows, row)
	}

	if opts.IncludeOrphans {
		for _, id := range assignment.Orphans(target) {
			tgt := target.Get(id)
			rows = append(rows, AlignedRow{
				TargetID:      id,
				TargetContent: tgt.Content,
				Orphan:        true,
			})
		}
	}
	return rows
}
