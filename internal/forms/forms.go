// Package forms turns parsed markup into structured HTML forms and builds
// the outbound requests their submission produces.
package forms

import (
	"fmt"
	"net/url"
	"strings"
)

// Control kinds, normalized to lower case. Free-text input types that carry
// no dedicated handling (email, tel, search, ...) behave as KindText.
const (
	KindText     = "text"
	KindHidden   = "hidden"
	KindPassword = "password"
	KindTextarea = "textarea"
	KindCheckbox = "checkbox"
	KindRadio    = "radio"
	KindSelect   = "select"
	KindFile     = "file"
	KindSubmit   = "submit"
	KindImage    = "image"
	KindButton   = "button"
	KindReset    = "reset"
)

// Input is a single form control.
type Input struct {
	Kind     string
	Name     string
	Value    string
	Options  []string // possible values for choice controls
	Checked  bool     // checkbox and radio state
	Multiple bool     // select with the multiple attribute
	Disabled bool
	ReadOnly bool
}

// IsChoice reports whether the control selects among enumerated values.
func (in *Input) IsChoice() bool {
	switch in.Kind {
	case KindCheckbox, KindRadio, KindSelect:
		return true
	}
	return false
}

// isButton reports whether the control is a submission button.
func (in *Input) isButton() bool {
	switch in.Kind {
	case KindSubmit, KindImage, KindButton, KindReset:
		return true
	}
	return false
}

// Form is one HTML form: its submission target plus an ordered control list.
type Form struct {
	Name    string
	ID      string
	Method  string // upper case; GET when the document omits it
	Action  *url.URL
	EncType string
	Inputs  []*Input
}

// Clone returns a deep, independent copy of the form. History snapshots rely
// on clones never aliasing the live form's controls.
func (f *Form) Clone() *Form {
	if f == nil {
		return nil
	}
	clone := &Form{
		Name:    f.Name,
		ID:      f.ID,
		Method:  f.Method,
		EncType: f.EncType,
	}
	if f.Action != nil {
		actionCopy := *f.Action
		clone.Action = &actionCopy
	}
	clone.Inputs = make([]*Input, len(f.Inputs))
	for i, in := range f.Inputs {
		inputCopy := *in
		inputCopy.Options = append([]string(nil), in.Options...)
		clone.Inputs[i] = &inputCopy
	}
	return clone
}

// InputsNamed returns every control with the given name, in document order.
func (f *Form) InputsNamed(name string) []*Input {
	var out []*Input
	for _, in := range f.Inputs {
		if in.Name == name {
			out = append(out, in)
		}
	}
	return out
}

// Value returns the current value of the occurrence-th (1-based) control with
// the given name. The second return is false if no such control exists.
func (f *Form) Value(name string, occurrence int) (string, bool) {
	in := f.inputAt(name, occurrence)
	if in == nil {
		return "", false
	}
	if in.Kind == KindCheckbox || in.Kind == KindRadio {
		if !in.Checked {
			return "", true
		}
	}
	return in.Value, true
}

// SetValue assigns a value to the occurrence-th (1-based) control with the
// given name. Choice controls only accept one of their possible values; radio
// controls additionally clear their name group's other members.
func (f *Form) SetValue(name, value string, occurrence int) error {
	in := f.inputAt(name, occurrence)
	if in == nil {
		return fmt.Errorf("form has no input named %q (occurrence %d)", name, occurrence)
	}
	if in.ReadOnly {
		return fmt.Errorf("input %q is read-only", name)
	}
	switch in.Kind {
	case KindCheckbox:
		if value == "" {
			in.Checked = false
			return nil
		}
		if !contains(in.Options, value) {
			return fmt.Errorf("%q is not a possible value for checkbox %q", value, name)
		}
		in.Value = value
		in.Checked = true
	case KindRadio:
		// A radio is set through its group: checking the member whose value
		// matches unchecks the rest.
		group := f.InputsNamed(name)
		var target *Input
		for _, member := range group {
			if member.Kind == KindRadio && contains(member.Options, value) {
				target = member
				break
			}
		}
		if target == nil {
			return fmt.Errorf("%q is not a possible value for radio group %q", value, name)
		}
		for _, member := range group {
			if member.Kind == KindRadio {
				member.Checked = member == target
			}
		}
	case KindSelect:
		if !contains(in.Options, value) {
			return fmt.Errorf("%q is not a possible value for select %q", value, name)
		}
		in.Value = value
	default:
		in.Value = value
	}
	return nil
}

// inputAt finds the occurrence-th (1-based) control with the given name.
func (f *Form) inputAt(name string, occurrence int) *Input {
	if occurrence < 1 {
		occurrence = 1
	}
	count := 0
	for _, in := range f.Inputs {
		if in.Name != name {
			continue
		}
		count++
		if count == occurrence {
			return in
		}
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// normalizeMethod upper-cases a form method, defaulting to GET.
func normalizeMethod(method string) string {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m != "POST" {
		return "GET"
	}
	return m
}
