package geo

import (
	"regexp"
	"strings"
)

// Route is a source/destination pair pulled from a user message.
type Route struct {
	From string
	To   string
}

var routePattern = regexp.MustCompile(`(?i)\bfrom\s+([a-z][a-z .'-]*?)\s+to\s+([a-z][a-z .'-]*)`)

// stopWords end a place name; whatever follows is dates or preferences.
var stopWords = map[string]bool{
	"next": true, "this": true, "on": true, "in": true, "for": true,
	"tomorrow": true, "today": true, "tonight": true, "around": true,
	"between": true, "during": true, "leaving": true, "returning": true,
	"departing": true, "with": true, "and": true, "at": true, "by": true,
	"please": true, "from": true, "to": true, "the": true, "early": true,
	"late": true, "mid": true, "after": true, "before": true,
}

// ExtractRoute finds a "from X to Y" pair in text. It is a heuristic: place
// names are cut at the first time or preference word, and anything it cannot
// read yields ok == false.
func ExtractRoute(text string) (Route, bool) {
	m := routePattern.FindStringSubmatch(text)
	if m == nil {
		return Route{}, false
	}
	r := Route{From: placeName(m[1]), To: placeName(m[2])}
	if r.From == "" || r.To == "" {
		return Route{}, false
	}
	return r, true
}

func placeName(s string) string {
	var words []string
	for _, w := range strings.Fields(s) {
		if stopWords[strings.ToLower(w)] {
			break
		}
		words = append(words, w)
	}
	return strings.Trim(strings.Join(words, " "), " .,'-")
}
