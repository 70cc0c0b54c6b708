package mech

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// TagKind identifies the markup element a link was extracted from.
type TagKind string

const (
	TagAnchor TagKind = "a"
	TagArea   TagKind = "area"
	TagFrame  TagKind = "frame"
	TagIframe TagKind = "iframe"
)

// Link is one navigational reference discovered in a page. It is immutable
// once constructed; the session discards the whole link set on every refresh.
type Link struct {
	// URL is the raw value of the tag's URL attribute (href or src),
	// unresolved.
	URL string
	// Text is the trimmed enclosed text. Only anchor tags carry text; for
	// every other kind it is meaningless and text criteria never match.
	Text string
	// Name is the tag's name attribute, empty if not present.
	Name string
	// Tag records which element produced the link.
	Tag TagKind
}

// HasText reports whether the link kind carries enclosed text at all.
// An anchor with empty text still has text; an area or frame never does.
func (l *Link) HasText() bool {
	return l.Tag == TagAnchor
}

// urlAttr names the URL-bearing attribute for each tag kind.
func urlAttr(tag TagKind) string {
	switch tag {
	case TagAnchor, TagArea:
		return "href"
	default:
		return "src"
	}
}

// ExtractLinks scans markup for a, area, frame and iframe tags and returns a
// link per tag carrying its URL attribute, in document order. Tags missing
// the attribute are skipped; duplicate URLs are preserved as separate links.
func ExtractLinks(content []byte) []*Link {
	var links []*Link

	tokenizer := html.NewTokenizer(bytes.NewReader(content))
	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return links
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		tag := TagKind(token.Data)
		switch tag {
		case TagAnchor, TagArea, TagFrame, TagIframe:
		default:
			continue
		}

		attrs := attributeMap(token)
		rawURL, ok := attrs[urlAttr(tag)]
		if !ok {
			// A named anchor with no href is not a link.
			continue
		}

		link := &Link{URL: rawURL, Tag: tag}
		if tag != TagArea {
			link.Name = attrs["name"]
		}
		if tag == TagAnchor && tokenType == html.StartTagToken {
			link.Text = collectAnchorText(tokenizer)
		}
		links = append(links, link)
	}
}

// collectAnchorText consumes tokens up to the anchor's matching close tag and
// returns the trimmed enclosed text.
func collectAnchorText(tokenizer *html.Tokenizer) string {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		switch tokenizer.Next() {
		case html.ErrorToken:
			depth = 0
		case html.TextToken:
			sb.Write(tokenizer.Text())
		case html.StartTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "a" {
				depth++
			}
		case html.EndTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "a" {
				depth--
			}
		}
	}
	return strings.TrimSpace(sb.String())
}

// attributeMap converts a token's attribute list into a map. The first
// occurrence of a duplicated attribute wins, matching browser behavior.
func attributeMap(token html.Token) map[string]string {
	attrs := make(map[string]string, len(token.Attr))
	for _, attr := range token.Attr {
		if _, exists := attrs[attr.Key]; !exists {
			attrs[attr.Key] = attr.Val
		}
	}
	return attrs
}
