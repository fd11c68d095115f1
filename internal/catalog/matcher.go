package catalog

import (
	"regexp"
	"strings"
)

// Matcher decides whether a lower-cased text contains a given needle.
type Matcher interface {
	Matches(text string) bool
}

// MatcherFactory builds a Matcher for one keyword or header pattern.
type MatcherFactory func(needle string) Matcher

// SubstringMatcher matches anywhere in the text.
type SubstringMatcher struct {
	needle string
}

// NewSubstringMatcher lower-cases needle and returns a substring matcher.
func NewSubstringMatcher(needle string) Matcher {
	return SubstringMatcher{needle: strings.ToLower(needle)}
}

// Matches implements Matcher.
func (m SubstringMatcher) Matches(text string) bool {
	return m.needle != "" && strings.Contains(text, m.needle)
}

// WordMatcher matches needle only when it is not glued to other letters or digits.
// Unicode letters count as word characters, so "itaú" is a whole word in "itaú-2024".
type WordMatcher struct {
	re *regexp.Regexp
}

// NewWordMatcher lower-cases needle and returns a word-boundary matcher.
func NewWordMatcher(needle string) Matcher {
	needle = strings.ToLower(strings.TrimSpace(needle))
	if needle == "" {
		return WordMatcher{}
	}
	re := regexp.MustCompile(`(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(needle) + `(?:$|[^\p{L}\p{N}])`)
	return WordMatcher{re: re}
}

// Matches implements Matcher.
func (m WordMatcher) Matches(text string) bool {
	return m.re != nil && m.re.MatchString(text)
}
