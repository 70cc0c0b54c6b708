package mech

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tcheukueppo/WWW-Mechanize/internal/forms"
)

// SelectedForm returns the form current field operations apply to, nil when
// the page carries none. The default selection after every fetch is the
// page's first form.
func (s *Session) SelectedForm() *forms.Form {
	if s.page == nil {
		return nil
	}
	return s.page.selected
}

// SelectForm selects the n-th (1-based) form on the page. It warns and
// leaves the selection unchanged when no such form exists.
func (s *Session) SelectForm(n int) bool {
	if s.page == nil || n < 1 || n > len(s.page.pageForms) {
		s.warn("No such form to select", zap.Int("n", n))
		return false
	}
	s.page.selected = s.page.pageForms[n-1]
	return true
}

// SelectFormByName selects the first form whose name attribute equals name.
// Ambiguity is warned about and resolved in favor of the first match; no
// match warns and leaves the selection unchanged.
func (s *Session) SelectFormByName(name string) bool {
	if s.page == nil {
		s.warn("No such form to select", zap.String("name", name))
		return false
	}
	matches := findMatches(s.page.pageForms, func(f *forms.Form) bool {
		return f.Name == name
	})
	if len(matches) == 0 {
		s.warn("No such form to select", zap.String("name", name))
		return false
	}
	if len(matches) > 1 {
		s.warn("Multiple forms share this name; selecting the first",
			zap.String("name", name), zap.Int("count", len(matches)))
	}
	s.page.selected = matches[0]
	return true
}

// requireForm returns the selected form or the fatal ErrNoForm. Operating on
// fields with nothing selected is internal misuse, not a recoverable miss.
func (s *Session) requireForm() (*forms.Form, error) {
	form := s.SelectedForm()
	if form == nil {
		return nil, ErrNoForm
	}
	return form, nil
}

// Field returns the current value of the named input (first occurrence) on
// the selected form, empty if absent.
func (s *Session) Field(name string) string {
	form := s.SelectedForm()
	if form == nil {
		return ""
	}
	value, _ := form.Value(name, 1)
	return value
}

// SetField sets the value of the named input on the selected form.
func (s *Session) SetField(name, value string) error {
	return s.SetFieldN(name, value, 1)
}

// SetFieldN sets the value of the occurrence-th (1-based) input among
// same-named inputs in the selected form.
func (s *Session) SetFieldN(name, value string, occurrence int) error {
	form, err := s.requireForm()
	if err != nil {
		return err
	}
	if err := form.SetValue(name, value, occurrence); err != nil {
		return fmt.Errorf("failed to set field %q: %w", name, err)
	}
	return nil
}

// FieldValue targets a specific occurrence in SetFields.
type FieldValue struct {
	Value      string
	Occurrence int
}

// SetFields applies one SetField per entry. Values are plain strings or
// FieldValue for a specific occurrence. Application order across distinct
// names follows map iteration and is unspecified.
func (s *Session) SetFields(fields map[string]any) error {
	for name, raw := range fields {
		switch v := raw.(type) {
		case string:
			if err := s.SetField(name, v); err != nil {
				return err
			}
		case FieldValue:
			if err := s.SetFieldN(name, v.Value, v.Occurrence); err != nil {
				return err
			}
		default:
			return fmt.Errorf("field %q must be a string or FieldValue, got %T", name, raw)
		}
	}
	return nil
}

// Tick checks the checkbox named name whose possible value equals value.
// A missing checkbox/value pairing warns; it is not fatal.
func (s *Session) Tick(name, value string) error {
	return s.setTick(name, value, true)
}

// Untick clears the checkbox named name whose possible value equals value.
func (s *Session) Untick(name, value string) error {
	return s.setTick(name, value, false)
}

// setTick resolves the first checkbox input/value pairing matching the
// target, in document order, using the same ordinal scan as link finding.
func (s *Session) setTick(name, value string, set bool) error {
	form, err := s.requireForm()
	if err != nil {
		return err
	}

	boxes := findMatches(form.InputsNamed(name), func(in *forms.Input) bool {
		return in.Kind == forms.KindCheckbox
	})
	box, ok := findMatch(boxes, func(in *forms.Input) bool {
		for _, possible := range in.Options {
			if possible == value {
				return true
			}
		}
		return false
	}, 1)
	if !ok {
		s.warn("No checkbox matches the requested value",
			zap.String("name", name), zap.String("value", value))
		return nil
	}

	if set {
		box.Value = value
		box.Checked = true
	} else {
		box.Checked = false
	}
	return nil
}

// Click presses the named button on the selected form at the default
// coordinates and issues the resulting request.
func (s *Session) Click(ctx context.Context, button string) error {
	return s.ClickXY(ctx, button, 1, 1)
}

// ClickXY presses the named button at the given coordinates, pushing history
// before the exchange. An empty name presses the form's first button.
func (s *Session) ClickXY(ctx context.Context, button string, x, y int) error {
	form, err := s.requireForm()
	if err != nil {
		return err
	}
	req, err := form.ClickRequest(button, x, y)
	if err != nil {
		return fmt.Errorf("failed to build click request: %w", err)
	}
	s.pushHistory()
	return s.executeRequest(ctx, req.WithContext(ctx))
}

// Submit issues the selected form's default submission, with no button
// pressed, pushing history before the exchange.
func (s *Session) Submit(ctx context.Context) error {
	form, err := s.requireForm()
	if err != nil {
		return err
	}
	req, err := form.SubmitRequest()
	if err != nil {
		return fmt.Errorf("failed to build submit request: %w", err)
	}
	s.pushHistory()
	return s.executeRequest(ctx, req.WithContext(ctx))
}

// SubmitOptions drives the composite SubmitForm convenience.
type SubmitOptions struct {
	// FormNumber selects a form by 1-based index before submitting; zero
	// keeps the current selection. FormName selects by name instead.
	FormNumber int
	FormName   string
	// Fields are applied as by SetFields before submitting.
	Fields map[string]any
	// Button, when non-empty, is pressed via ClickXY at X,Y (defaulting to
	// 1,1); otherwise the form is submitted without a button.
	Button string
	X, Y   int
}

// SubmitForm combines optional form selection, bulk field-setting, and
// either a button click or a plain submission.
func (s *Session) SubmitForm(ctx context.Context, opts SubmitOptions) error {
	if opts.FormNumber > 0 {
		if !s.SelectForm(opts.FormNumber) {
			return fmt.Errorf("no form number %d on this page", opts.FormNumber)
		}
	} else if opts.FormName != "" {
		if !s.SelectFormByName(opts.FormName) {
			return fmt.Errorf("no form named %q on this page", opts.FormName)
		}
	}

	if len(opts.Fields) > 0 {
		if err := s.SetFields(opts.Fields); err != nil {
			return err
		}
	}

	if opts.Button != "" {
		x, y := opts.X, opts.Y
		if x == 0 {
			x = 1
		}
		if y == 0 {
			y = 1
		}
		return s.ClickXY(ctx, opts.Button, x, y)
	}
	return s.Submit(ctx)
}
