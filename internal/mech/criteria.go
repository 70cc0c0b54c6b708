package mech

import (
	"fmt"
	"regexp"
)

// OrdinalAll selects every match instead of a single one. It is valid for
// FindAllLinks but rejected by single-link operations such as FollowLink.
const OrdinalAll = -1

// Criteria selects among ambiguous candidates. All supplied criteria must
// hold simultaneously; Ordinal then picks the n-th (1-based) survivor.
type Criteria struct {
	Text      *string
	TextRegex *regexp.Regexp
	URL       *string
	URLRegex  *regexp.Regexp

	// Ordinal is the 1-based index among matches. Zero means first;
	// OrdinalAll selects the full match set.
	Ordinal int
}

// WithText returns criteria matching an exact link text.
func WithText(text string) Criteria { return Criteria{Text: &text} }

// WithURL returns criteria matching an exact link URL.
func WithURL(url string) Criteria { return Criteria{URL: &url} }

// Nth returns a copy of the criteria selecting the n-th (1-based) match.
func (c Criteria) Nth(n int) Criteria {
	c.Ordinal = n
	return c
}

// empty reports whether no filtering criteria were supplied, in which case
// every candidate matches.
func (c Criteria) empty() bool {
	return c.Text == nil && c.TextRegex == nil && c.URL == nil && c.URLRegex == nil
}

// matchLink folds all supplied criteria into one AND predicate over a link.
// Text criteria treat links without text (area, frame, iframe) as non-matches.
func (c Criteria) matchLink(l *Link) bool {
	if c.Text != nil && (!l.HasText() || l.Text != *c.Text) {
		return false
	}
	if c.TextRegex != nil && (!l.HasText() || !c.TextRegex.MatchString(l.Text)) {
		return false
	}
	if c.URL != nil && l.URL != *c.URL {
		return false
	}
	if c.URLRegex != nil && !c.URLRegex.MatchString(l.URL) {
		return false
	}
	return true
}

// ParseCriteria builds Criteria from a declarative option bag, the form used
// by scripts. Recognized keys: "text", "text_regex", "url", "url_regex" and
// "n" (an int, or the string "all"). Unknown keys do not filter; they are
// returned so the caller can report them as non-fatal warnings.
func ParseCriteria(opts map[string]any) (Criteria, []string, error) {
	var c Criteria
	var unknown []string

	for key, raw := range opts {
		switch key {
		case "text":
			s, err := stringOption(key, raw)
			if err != nil {
				return c, unknown, err
			}
			c.Text = &s
		case "url":
			s, err := stringOption(key, raw)
			if err != nil {
				return c, unknown, err
			}
			c.URL = &s
		case "text_regex", "url_regex":
			re, err := regexpOption(key, raw)
			if err != nil {
				return c, unknown, err
			}
			if key == "text_regex" {
				c.TextRegex = re
			} else {
				c.URLRegex = re
			}
		case "n":
			switch v := raw.(type) {
			case int:
				c.Ordinal = v
			case string:
				if v != "all" {
					return c, unknown, fmt.Errorf("criteria %q must be an int or \"all\", got %q", key, v)
				}
				c.Ordinal = OrdinalAll
			default:
				return c, unknown, fmt.Errorf("criteria %q must be an int or \"all\", got %T", key, raw)
			}
		default:
			unknown = append(unknown, key)
		}
	}
	return c, unknown, nil
}

func stringOption(key string, raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("criteria %q must be a string, got %T", key, raw)
	}
	return s, nil
}

func regexpOption(key string, raw any) (*regexp.Regexp, error) {
	switch v := raw.(type) {
	case *regexp.Regexp:
		return v, nil
	case string:
		re, err := regexp.Compile(v)
		if err != nil {
			return nil, fmt.Errorf("criteria %q holds an invalid pattern: %w", key, err)
		}
		return re, nil
	default:
		return nil, fmt.Errorf("criteria %q must be a pattern, got %T", key, raw)
	}
}

// findMatch scans candidates in order and returns the ordinal-th (1-based)
// one satisfying the predicate, short-circuiting as soon as it is reached.
// Ordinals past the final match yield no result rather than an error.
func findMatch[T any](candidates []T, pred func(T) bool, ordinal int) (T, bool) {
	var zero T
	if ordinal < 1 {
		ordinal = 1
	}
	count := 0
	for _, candidate := range candidates {
		if !pred(candidate) {
			continue
		}
		count++
		if count == ordinal {
			return candidate, true
		}
	}
	return zero, false
}

// findMatches returns every candidate satisfying the predicate, in original
// order. The empty result is a non-nil slice, distinct from "no result".
func findMatches[T any](candidates []T, pred func(T) bool) []T {
	matches := make([]T, 0)
	for _, candidate := range candidates {
		if pred(candidate) {
			matches = append(matches, candidate)
		}
	}
	return matches
}
