// Package csvio reads the ContentId/Content exports this service aligns
// and writes the aligned result back out as CSV.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lingualign/internal/align"
)

// ReadRecords parses a content export. The header must contain ContentId
// and Content columns (case-insensitive, any position); rows where both
// cells are empty are dropped. Id validation is the caller's concern.
func ReadRecords(r io.Reader) ([]align.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file is empty", align.ErrValidation)
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idCol, contentCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF"))) {
		case "contentid", "content_id":
			idCol = i
		case "content":
			contentCol = i
		}
	}
	if idCol < 0 || contentCol < 0 {
		return nil, fmt.Errorf("%w: header must contain ContentId and Content columns", align.ErrValidation)
	}

	var records []align.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(records)+2, err)
		}
		if idCol >= len(row) || contentCol >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idCol])
		content := row[contentCol]
		if id == "" && strings.TrimSpace(content) == "" {
			continue
		}
		records = append(records, align.Record{ID: id, Content: content})
	}
	return records, nil
}

// WriteAlignedRows renders aligned rows as CSV, one line per row, in the
// order given.
func WriteAlignedRows(w io.Writer, rows []align.AlignedRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"ContentId", "ReferenceContent", "TargetContentId", "TargetContent", "MatchScore"}); err != nil {
		return err
	}
	for _, row := range rows {
		score := ""
		if row.MatchScore != nil {
			score = strconv.FormatFloat(float64(*row.MatchScore), 'f', 4, 32)
		}
		record := []string{row.ReferenceID, row.ReferenceContent, row.TargetID, row.TargetContent, score}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
