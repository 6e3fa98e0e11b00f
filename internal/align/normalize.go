package align

import (
	"regexp"
	"strings"
)

// DefaultSpecialCharacters is the set removed when RemoveSpecialCharacters
// is enabled and no custom set is configured. Hyphens and apostrophes stay:
// they carry meaning inside words in most of the languages we compare.
const DefaultSpecialCharacters = "!\"#$%&()*+,./:;<=>?@[\\]^_`{|}~"

var (
	markupRe     = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeOptions control the preprocessing applied before embedding.
// Each toggle is independent.
type NormalizeOptions struct {
	StripMarkup             bool
	NormalizeWhitespace     bool
	RemoveSpecialCharacters bool
	SpecialCharacters       string

	// Rows whose normalized length falls outside [MinLength, MaxLength]
	// are marked ineligible for embedding.
	MinLength int
	MaxLength int
}

// Normalize applies the configured preprocessing to a raw content string.
// Pure and idempotent. Trimming belongs to the whitespace toggle, so with
// NormalizeWhitespace on, all-markup or all-whitespace input yields "".
func Normalize(raw string, opts NormalizeOptions) string {
	s := raw
	if opts.StripMarkup {
		s = markupRe.ReplaceAllString(s, " ")
	}
	if opts.RemoveSpecialCharacters {
		specials := opts.SpecialCharacters
		if specials == "" {
			specials = DefaultSpecialCharacters
		}
		s = strings.Map(func(r rune) rune {
			if strings.ContainsRune(specials, r) {
				return ' '
			}
			return r
		}, s)
	}
	if opts.NormalizeWhitespace {
		s = whitespaceRe.ReplaceAllString(s, " ")
		s = strings.TrimSpace(s)
	}
	return s
}

// Preprocess normalizes every row in place and marks rows outside the
// configured length bounds as skipped.
func Preprocess(set *ContentSet, opts NormalizeOptions) {
	for _, row := range set.Rows {
		row.Normalized = Normalize(row.Content, opts)
		length := len([]rune(row.Normalized))
		switch {
		case length == 0:
			row.Skip = SkipEmpty
		case length < opts.MinLength:
			row.Skip = SkipTooShort
		case opts.MaxLength > 0 && length > opts.MaxLength:
			row.Skip = SkipTooLong
		}
	}
}
