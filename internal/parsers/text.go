package parsers

import (
	"regexp"
	"strings"
)

// TextParser splits prose into paragraph fragments on blank lines,
// merging runs of short paragraphs and splitting overlong ones on
// sentence boundaries.
type TextParser struct {
	MinParagraphLength int
	MaxParagraphLength int
}

var blankLineRe = regexp.MustCompile(`\n\s*\n+`)
var whitespaceRunRe = regexp.MustCompile(`\s+`)
var sentenceBoundaryRe = regexp.MustCompile(`[.!?]\s+`)

// NewTextParser builds a TextParser; zero values fall back to the
// 50/2000 character defaults.
func NewTextParser(minParagraphLength, maxParagraphLength int) *TextParser {
	if minParagraphLength <= 0 {
		minParagraphLength = 50
	}
	if maxParagraphLength <= 0 {
		maxParagraphLength = 2000
	}
	return &TextParser{MinParagraphLength: minParagraphLength, MaxParagraphLength: maxParagraphLength}
}

// ContentType identifies this parser for explicit selection.
func (p *TextParser) ContentType() string { return "text" }

// CanParse accepts any payload at least MinParagraphLength long.
func (p *TextParser) CanParse(payload []byte) bool {
	return len(payload) > 0 && len(payload) >= p.MinParagraphLength
}

// Parse splits payload into normalized paragraphs, merges short runs,
// splits overlong ones, and emits the result as ordered fragments.
func (p *TextParser) Parse(payload []byte, resourceID string, _ map[string]any) (*ParsedResource, error) {
	raw := blankLineRe.Split(string(payload), -1)

	var paragraphs []string
	for _, r := range raw {
		normalized := normalizeWhitespace(r)
		if normalized != "" {
			paragraphs = append(paragraphs, normalized)
		}
	}

	merged := mergeShortParagraphs(paragraphs, p.MinParagraphLength)

	var final []string
	for _, para := range merged {
		if len(para) > p.MaxParagraphLength {
			final = append(final, splitLongParagraph(para, p.MaxParagraphLength)...)
		} else {
			final = append(final, para)
		}
	}

	fragments := make([]Fragment, 0, len(final))
	for i, para := range final {
		fragments = append(fragments, Fragment{
			Type:    "paragraph",
			Order:   i,
			Content: para,
			Metadata: map[string]any{
				"length":     len(para),
				"word_count": len(strings.Fields(para)),
			},
		})
	}

	return &ParsedResource{ResourceID: resourceID, Fragments: fragments}, nil
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(s, " "))
}

// mergeShortParagraphs buffers consecutive short paragraphs and flushes
// the buffer as one fragment once the joined length reaches minLength, or
// whenever a non-short paragraph is encountered.
func mergeShortParagraphs(paragraphs []string, minLength int) []string {
	var out []string
	var buffer []string

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		out = append(out, strings.Join(buffer, "\n\n"))
		buffer = nil
	}

	for _, para := range paragraphs {
		if len(para) >= minLength {
			flush()
			out = append(out, para)
			continue
		}

		buffer = append(buffer, para)
		if len(strings.Join(buffer, "\n\n")) >= minLength {
			flush()
		}
	}
	flush()

	return out
}

// splitLongParagraph breaks para on sentence boundaries, packing
// sentences greedily into chunks no longer than maxLength. A single
// sentence longer than maxLength is not split further and becomes a
// chunk of its own that exceeds maxLength.
func splitLongParagraph(para string, maxLength int) []string {
	sentences := splitSentences(para)

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxLength {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	if len(chunks) == 0 {
		return []string{para}
	}
	return chunks
}

func splitSentences(s string) []string {
	locs := sentenceBoundaryRe.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return []string{s}
	}

	var out []string
	start := 0
	for _, loc := range locs {
		out = append(out, s[start:loc[1]])
		start = loc[1]
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

var _ Parser = (*TextParser)(nil)
