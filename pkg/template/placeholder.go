package template

import (
	"regexp"
	"strings"
)

// {{ name }}, {{name}} and {{ name | filter }} all reference "name".
var placeholderRe = regexp.MustCompile(`\{\{\s*([^{}|]+?)\s*(?:\|[^{}]*)?\}\}`)

type segment struct {
	text        string
	placeholder bool
}

func compile(src string) []segment {
	matches := placeholderRe.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return []segment{{text: src}}
	}

	segments := make([]segment, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			segments = append(segments, segment{text: src[last:m[0]]})
		}
		segments = append(segments, segment{
			text:        strings.TrimSpace(src[m[2]:m[3]]),
			placeholder: true,
		})
		last = m[1]
	}
	if last < len(src) {
		segments = append(segments, segment{text: src[last:]})
	}
	return segments
}

// Placeholders extracts the unique placeholder names of a raw template string, sorted by first use.
func Placeholders(src string) []string {
	return Template{Body: src}.Placeholders()
}
