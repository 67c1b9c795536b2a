// Package tags extracts and rewrites the blocks of a file that sit between an
// open and a close marker. Everything outside the markers is structure and is
// never modified.
package tags

import "strings"

// span holds the byte bounds of one block body, markers excluded.
type span struct {
	start int
	end   int
}

// scan walks content left to right. Every open marker starts a block that ends
// at the next close marker; scanning resumes right after that close marker.
// Extract and Substitute share this walk so that their notion of a block is
// always the same.
func scan(content string, m MarkerPair) ([]span, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var spans []span
	cursor := 0
	for {
		idx := strings.Index(content[cursor:], m.Open)
		if idx < 0 {
			return spans, nil
		}
		openAt := cursor + idx
		bodyStart := openAt + len(m.Open)

		end := strings.Index(content[bodyStart:], m.Close)
		if end < 0 {
			return nil, &TagMismatchError{Offset: openAt, Marker: m.Open}
		}
		bodyEnd := bodyStart + end

		spans = append(spans, span{start: bodyStart, end: bodyEnd})
		cursor = bodyEnd + len(m.Close)
	}
}

// Extract returns the body of every block in content, in order of appearance.
// A nil slice is returned when content has no open marker. An open marker
// without a following close marker is a *TagMismatchError.
func Extract(content string, m MarkerPair) ([]string, error) {
	spans, err := scan(content, m)
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, nil
	}

	blocks := make([]string, len(spans))
	for i, s := range spans {
		blocks[i] = content[s.start:s.end]
	}
	return blocks, nil
}

// Substitute replaces the body of the i-th block of content with replacements[i].
// Text outside the blocks, including the markers themselves, is copied through
// untouched. The content is validated before anything is spliced: unbalanced
// markers yield a *TagMismatchError and fewer replacements than blocks yield a
// *ReplacementCountError. Surplus replacements are ignored.
func Substitute(content string, replacements []string, m MarkerPair) (string, error) {
	spans, err := scan(content, m)
	if err != nil {
		return "", err
	}
	if len(replacements) < len(spans) {
		return "", &ReplacementCountError{Want: len(spans), Got: len(replacements)}
	}

	var b strings.Builder
	b.Grow(len(content))

	prev := 0
	for i, s := range spans {
		b.WriteString(content[prev:s.start])
		b.WriteString(replacements[i])
		prev = s.end
	}
	b.WriteString(content[prev:])

	return b.String(), nil
}

// Count returns the number of well formed blocks in content.
func Count(content string, m MarkerPair) (int, error) {
	spans, err := scan(content, m)
	if err != nil {
		return 0, err
	}
	return len(spans), nil
}
