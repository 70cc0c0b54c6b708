package mech

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/tcheukueppo/WWW-Mechanize/internal/forms"
	"github.com/tcheukueppo/WWW-Mechanize/internal/network"
)

// page bundles everything derived from the most recent exchange. It is
// rebuilt wholesale after every fetch; the only field mutated in place
// afterwards is selected.
type page struct {
	requestURI  *url.URL
	resolvedURI *url.URL
	status      int
	contentType string
	content     []byte
	title       string
	base        *url.URL

	links     []*Link
	pageForms []*forms.Form
	selected  *forms.Form
}

// newPage derives page state from one completed exchange. Links and forms are
// populated only for markup content, always from the same body, so the two
// are never partially updated relative to each other.
func newPage(requestURI, resolvedURI *url.URL, status int, rawContentType string, body []byte) *page {
	p := &page{
		requestURI:  requestURI,
		resolvedURI: resolvedURI,
		status:      status,
		base:        resolvedURI,
	}

	p.contentType = network.EffectiveContentType(rawContentType, body)
	p.content = network.BOMStripped(network.DecodeBody(rawContentType, body))

	if !network.IsMarkup(p.contentType) || len(p.content) == 0 {
		return p
	}

	doc, err := html.Parse(bytes.NewReader(p.content))
	if err != nil {
		// Unparseable markup leaves the derived state empty, like non-markup.
		return p
	}

	if titleNode := htmlquery.FindOne(doc, "//title"); titleNode != nil {
		p.title = strings.TrimSpace(htmlquery.InnerText(titleNode))
	}
	if baseNode := htmlquery.FindOne(doc, "//head/base[@href]"); baseNode != nil && resolvedURI != nil {
		if resolved, err := resolvedURI.Parse(htmlquery.SelectAttr(baseNode, "href")); err == nil {
			p.base = resolved
		}
	}

	p.links = ExtractLinks(p.content)
	p.pageForms = forms.Parse(doc, p.base)
	if len(p.pageForms) > 0 {
		p.selected = p.pageForms[0]
	}
	return p
}

// emptyPage records a failed exchange that produced no response.
func emptyPage(requestURI *url.URL) *page {
	return &page{requestURI: requestURI, resolvedURI: requestURI, base: requestURI}
}

// clone returns a deep, independent copy. Forms are cloned control by
// control; the selected form keeps its identity relative to the cloned set.
// Links are immutable and may be shared.
func (p *page) clone() *page {
	if p == nil {
		return nil
	}
	copied := &page{
		requestURI:  cloneURL(p.requestURI),
		resolvedURI: cloneURL(p.resolvedURI),
		status:      p.status,
		contentType: p.contentType,
		content:     append([]byte(nil), p.content...),
		title:       p.title,
		base:        cloneURL(p.base),
		links:       append([]*Link(nil), p.links...),
	}
	copied.pageForms = make([]*forms.Form, len(p.pageForms))
	for i, f := range p.pageForms {
		copied.pageForms[i] = f.Clone()
		if f == p.selected {
			copied.selected = copied.pageForms[i]
		}
	}
	return copied
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	copied := *u
	if u.User != nil {
		userCopy := *u.User
		copied.User = &userCopy
	}
	return &copied
}

// success reports whether the exchange completed with a success-class status.
func (p *page) success() bool {
	return p.status >= 200 && p.status < 300
}
