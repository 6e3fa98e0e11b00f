package csvio

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lingualign/internal/align"
)

func TestReadRecords(t *testing.T) {
	input := "ContentId,Content\nR1,Book now\nR2,\"Learn, more\"\n"
	records, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, align.Record{ID: "R1", Content: "Book now"}, records[0])
	assert.Equal(t, align.Record{ID: "R2", Content: "Learn, more"}, records[1])
}

func TestReadRecords_HeaderVariants(t *testing.T) {
	// BOM, different casing, extra columns.
	input := "\uFEFFcontent_id,Page,CONTENT\nR1,home,Hello\n"
	records, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "R1", records[0].ID)
	assert.Equal(t, "Hello", records[0].Content)
}

func TestReadRecords_SkipsBlankLines(t *testing.T) {
	input := "ContentId,Content\nR1,Hello\n,\nR2,World\n"
	records, err := ReadRecords(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadRecords_MissingColumns(t *testing.T) {
	_, err := ReadRecords(strings.NewReader("Id,Text\nR1,Hello\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, align.ErrValidation))
}

func TestReadRecords_EmptyFile(t *testing.T) {
	_, err := ReadRecords(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, align.ErrValidation))
}

func TestWriteAlignedRows(t *testing.T) {
	score := float32(0.9)
	rows := []align.AlignedRow{
		{ReferenceID: "R1", ReferenceContent: "Book now", TargetID: "T1", TargetContent: "Jetzt buchen", MatchScore: &score},
		{ReferenceID: "R2", ReferenceContent: "Learn more", TargetContent: "[UNMATCHED]"},
		{TargetID: "T9", TargetContent: "Mehr erfahren", Orphan: true},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAlignedRows(&buf, rows))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ContentId,ReferenceContent,TargetContentId,TargetContent,MatchScore", lines[0])
	assert.Equal(t, "R1,Book now,T1,Jetzt buchen,0.9000", lines[1])
	assert.Equal(t, "R2,Learn more,,[UNMATCHED],", lines[2])
	assert.Equal(t, ",,T9,Mehr erfahren,", lines[3])
}
