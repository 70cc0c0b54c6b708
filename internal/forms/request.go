package forms

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// SubmitRequest builds the request for submitting the form without pressing
// any button: only non-button successful controls contribute values.
func (f *Form) SubmitRequest() (*http.Request, error) {
	return f.buildRequest(nil, 0, 0)
}

// ClickRequest builds the request for pressing the named submit or image
// button at the given coordinates. An empty name presses the form's first
// button. Image buttons contribute coordinate pairs under "name.x"/"name.y"
// (bare "x"/"y" when unnamed).
func (f *Form) ClickRequest(name string, x, y int) (*http.Request, error) {
	var button *Input
	for _, in := range f.Inputs {
		if in.Kind != KindSubmit && in.Kind != KindImage {
			continue
		}
		if name == "" || in.Name == name {
			button = in
			break
		}
	}
	if button == nil {
		if name == "" {
			return nil, fmt.Errorf("form has no submit button")
		}
		return nil, fmt.Errorf("form has no submit button named %q", name)
	}
	return f.buildRequest(button, x, y)
}

// buildRequest assembles the outbound request from the form's successful
// controls plus, optionally, one pressed button.
func (f *Form) buildRequest(button *Input, x, y int) (*http.Request, error) {
	if f.Action == nil {
		return nil, fmt.Errorf("form has no resolvable action URL")
	}

	values := f.successfulValues(button, x, y)

	if f.Method != "POST" {
		// GET submission replaces the action's query string.
		target := *f.Action
		target.RawQuery = values.Encode()
		return http.NewRequest(http.MethodGet, target.String(), nil)
	}

	if strings.HasPrefix(f.EncType, "multipart/form-data") {
		return f.multipartRequest(values)
	}

	req, err := http.NewRequest(http.MethodPost, f.Action.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// successfulValues collects the controls a browser would serialize, in
// document order.
func (f *Form) successfulValues(button *Input, x, y int) url.Values {
	values := url.Values{}
	for _, in := range f.Inputs {
		if in.Disabled {
			continue
		}
		if in.isButton() {
			if in != button {
				continue
			}
			if in.Kind == KindImage {
				prefix := ""
				if in.Name != "" {
					prefix = in.Name + "."
				}
				values.Add(prefix+"x", strconv.Itoa(x))
				values.Add(prefix+"y", strconv.Itoa(y))
				if in.Name != "" && in.Value != "" {
					values.Add(in.Name, in.Value)
				}
			} else if in.Name != "" {
				values.Add(in.Name, in.Value)
			}
			continue
		}
		if in.Name == "" {
			continue
		}
		switch in.Kind {
		case KindCheckbox, KindRadio:
			if in.Checked {
				values.Add(in.Name, in.Value)
			}
		case KindSelect:
			if in.Value != "" || len(in.Options) > 0 {
				values.Add(in.Name, in.Value)
			}
		default:
			values.Add(in.Name, in.Value)
		}
	}
	return values
}

func (f *Form) multipartRequest(values url.Values) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, in := range f.Inputs {
		if in.Name == "" || !values.Has(in.Name) {
			continue
		}
		for _, v := range values[in.Name] {
			if err := writer.WriteField(in.Name, v); err != nil {
				return nil, fmt.Errorf("failed to encode multipart field %q: %w", in.Name, err)
			}
		}
		values.Del(in.Name)
	}
	// Coordinate pairs from image buttons have no backing control.
	for name, vs := range values {
		for _, v := range vs {
			if err := writer.WriteField(name, v); err != nil {
				return nil, fmt.Errorf("failed to encode multipart field %q: %w", name, err)
			}
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, f.Action.String(), bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req, nil
}
