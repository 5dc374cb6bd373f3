package defrag

import "strings"

// stopWords excluded from title keyword extraction.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true,
}

// entryKeywords extracts topic keywords from a title and tag list:
// lowercased title words longer than 3 characters minus stop words, plus
// every tag not prefixed "layer:" (those denote provenance, not topic).
func entryKeywords(title string, tags []string) []string {
	var out []string
	for _, word := range strings.Fields(title) {
		word = strings.ToLower(strings.Trim(word, ".,;:!?\"'()[]"))
		if len(word) <= 3 || stopWords[word] {
			continue
		}
		out = append(out, word)
	}
	for _, tag := range tags {
		if strings.HasPrefix(tag, "layer:") {
			continue
		}
		if tag != "" {
			out = append(out, tag)
		}
	}
	return out
}
