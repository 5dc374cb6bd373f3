package defrag

import (
	"fmt"
	"strings"
)

// antonymPairs are phrase pairs that suggest two related entries give
// contradictory advice when one phrase appears in each.
var antonymPairs = [][2]string{
	{"always", "never"},
	{"always", "avoid"},
	{"avoid", "use"},
	{"don't use", "use"},
	{"recommended", "not recommended"},
	{"best practice", "antipattern"},
	{"fast", "slow"},
	{"efficient", "inefficient"},
}

// conflictIndicators scans two content bodies for antonym phrase pairs in
// either direction. This is a lexical heuristic, not a proof: the result
// annotates a candidate pair and never filters it out.
func conflictIndicators(content1, content2 string) []string {
	c1 := strings.ToLower(content1)
	c2 := strings.ToLower(content2)

	var out []string
	seen := make(map[string]bool)
	add := func(a, b string) {
		key := a + "|" + b
		if !seen[key] {
			seen[key] = true
			out = append(out, fmt.Sprintf("%q vs %q", a, b))
		}
	}

	for _, pair := range antonymPairs {
		p1, p2 := pair[0], pair[1]
		if strings.Contains(c1, p1) && strings.Contains(c2, p2) {
			add(p1, p2)
		} else if strings.Contains(c1, p2) && strings.Contains(c2, p1) {
			add(p2, p1)
		}
	}
	return out
}
