package forms

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Parse extracts every form from a parsed document, resolving each action
// against base. Forms appear in document order; controls appear in document
// order within their form.
func Parse(root *html.Node, base *url.URL) []*Form {
	doc := goquery.NewDocumentFromNode(root)
	var out []*Form

	doc.Find("form").Each(func(_ int, sel *goquery.Selection) {
		form := &Form{
			Name:    sel.AttrOr("name", ""),
			ID:      sel.AttrOr("id", ""),
			Method:  normalizeMethod(sel.AttrOr("method", "")),
			EncType: strings.ToLower(sel.AttrOr("enctype", "application/x-www-form-urlencoded")),
			Action:  resolveAction(sel.AttrOr("action", ""), base),
		}

		sel.Find("input, textarea, select, button").Each(func(_ int, ctrl *goquery.Selection) {
			if in := parseControl(ctrl); in != nil {
				form.Inputs = append(form.Inputs, in)
			}
		})

		out = append(out, form)
	})

	return out
}

// resolveAction resolves a form action against the document base. An empty
// action submits back to the base itself.
func resolveAction(action string, base *url.URL) *url.URL {
	if base == nil {
		u, err := url.Parse(action)
		if err != nil {
			return nil
		}
		return u
	}
	if action == "" {
		copied := *base
		return &copied
	}
	resolved, err := base.Parse(action)
	if err != nil {
		copied := *base
		return &copied
	}
	return resolved
}

func parseControl(sel *goquery.Selection) *Input {
	node := sel.Get(0)
	if node == nil {
		return nil
	}

	switch node.Data {
	case "input":
		return parseInputTag(sel)
	case "textarea":
		return &Input{
			Kind:     KindTextarea,
			Name:     sel.AttrOr("name", ""),
			Value:    sel.Text(),
			Disabled: hasAttr(sel, "disabled"),
			ReadOnly: hasAttr(sel, "readonly"),
		}
	case "select":
		return parseSelectTag(sel)
	case "button":
		kind := strings.ToLower(sel.AttrOr("type", "submit"))
		if kind != KindSubmit && kind != KindReset {
			kind = KindButton
		}
		return &Input{
			Kind:     kind,
			Name:     sel.AttrOr("name", ""),
			Value:    sel.AttrOr("value", ""),
			Disabled: hasAttr(sel, "disabled"),
		}
	}
	return nil
}

func parseInputTag(sel *goquery.Selection) *Input {
	kind := strings.ToLower(sel.AttrOr("type", "text"))
	in := &Input{
		Kind:     kind,
		Name:     sel.AttrOr("name", ""),
		Value:    sel.AttrOr("value", ""),
		Disabled: hasAttr(sel, "disabled"),
		ReadOnly: hasAttr(sel, "readonly"),
	}

	switch kind {
	case KindCheckbox, KindRadio:
		// The value attribute defaults to "on" and is the control's single
		// possible value.
		if in.Value == "" {
			in.Value = "on"
		}
		in.Options = []string{in.Value}
		in.Checked = hasAttr(sel, "checked")
	case KindHidden, KindPassword, KindFile, KindSubmit, KindImage, KindButton, KindReset:
		// Kept as-is.
	default:
		// text, email, search, url, tel, number, date, ... all behave as text.
		in.Kind = KindText
	}
	return in
}

func parseSelectTag(sel *goquery.Selection) *Input {
	in := &Input{
		Kind:     KindSelect,
		Name:     sel.AttrOr("name", ""),
		Multiple: hasAttr(sel, "multiple"),
		Disabled: hasAttr(sel, "disabled"),
	}

	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, ok := opt.Attr("value")
		if !ok {
			value = strings.TrimSpace(opt.Text())
		}
		in.Options = append(in.Options, value)
		if hasAttr(opt, "selected") {
			in.Value = value
		}
	})

	// Browsers select the first option when the document marks none.
	if in.Value == "" && !in.Multiple && len(in.Options) > 0 {
		in.Value = in.Options[0]
	}
	return in
}

func hasAttr(sel *goquery.Selection, name string) bool {
	_, ok := sel.Attr(name)
	return ok
}
