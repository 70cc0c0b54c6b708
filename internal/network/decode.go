package network

import (
	"bytes"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// EffectiveContentType returns the bare media type of a response body, with
// no parameters. The Content-Type header wins; when it is missing or
// unparseable the body is sniffed instead.
func EffectiveContentType(header string, body []byte) string {
	if header != "" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil {
			return mediaType
		}
	}
	if len(body) == 0 {
		return ""
	}
	// mimetype.Detect appends parameters ("text/html; charset=utf-8").
	detected := mimetype.Detect(body).String()
	if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
		return mediaType
	}
	return detected
}

// IsMarkup reports whether a media type denotes an HTML-family document.
func IsMarkup(mediaType string) bool {
	mt := strings.ToLower(mediaType)
	// Tolerate media types that arrive with parameters attached.
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch mt {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}

// DecodeBody converts a response body to UTF-8. The charset parameter of the
// Content-Type header is authoritative; without one the charset is detected
// from the bytes. Bodies that are already UTF-8, or whose encoding cannot be
// determined, are returned unchanged.
func DecodeBody(contentType string, body []byte) []byte {
	if len(body) == 0 {
		return body
	}

	name := charsetFromHeader(contentType)
	if name == "" {
		detector := chardet.NewHtmlDetector()
		result, err := detector.DetectBest(body)
		if err != nil || result == nil {
			return body
		}
		name = result.Charset
	}

	if isUTF8Name(name) {
		return body
	}

	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil || enc == unicode.UTF8 {
		return body
	}

	decoded, _, err := transform.Bytes(enc.NewDecoder(), body)
	if err != nil {
		return body
	}
	return decoded
}

func charsetFromHeader(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func isUTF8Name(name string) bool {
	switch strings.ToLower(name) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return true
	}
	return false
}

// BOMStripped removes a UTF-8 byte order mark if present.
func BOMStripped(body []byte) []byte {
	return bytes.TrimPrefix(body, []byte{0xEF, 0xBB, 0xBF})
}
