// Package models holds the wire shape of an inbound request as the
// predicate engine sees it, independent of whichever transport (HTTP,
// or a future protocol adapter) produced it.
package models

import (
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/svc-virt/predicate-engine/internal/value"
)

// Request is a simplified, transport-agnostic view of an inbound
// request: the fields a predicate can match against.
type Request struct {
	RequestFrom string            `json:"requestFrom,omitempty"`
	Method      string            `json:"method"`
	Path        string            `json:"path"`
	Query       map[string]string `json:"query,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
	Form        map[string]string `json:"form,omitempty"`
	IP          string            `json:"ip,omitempty"`
	Timestamp   string            `json:"timestamp,omitempty"`
	Mode        string            `json:"_mode,omitempty"`
}

// ToValue renders Request as the Record the predicate engine matches
// against. method, path, body, query, headers, form and ip are always
// present even when empty — an absent query string or header map
// still reads as an empty Record, not Null, so `exists` and
// nested-field lookups stay consistent. requestFrom is present only
// when set; Timestamp and Mode are not included.
func (r *Request) ToValue() value.Value {
	if r == nil {
		return value.NewRecord(nil)
	}
	fields := map[string]value.Value{
		"method":  value.NewString(r.Method),
		"path":    value.NewString(r.Path),
		"body":    value.NewString(r.Body),
		"query":   stringMapToRecord(r.Query),
		"headers": stringMapToRecord(r.Headers),
		"form":    stringMapToRecord(r.Form),
		"ip":      value.NewString(r.IP),
	}
	if r.RequestFrom != "" {
		fields["requestFrom"] = value.NewString(r.RequestFrom)
	}
	return value.NewRecord(fields)
}

func stringMapToRecord(m map[string]string) value.Value {
	out := make(map[string]value.Value, len(m))
	for k, v := range m {
		out[k] = value.NewString(v)
	}
	return value.NewRecord(out)
}

// NewRequestFromHTTP builds a Request from an *http.Request, consuming
// its body. Content recognized as binary (by content type or invalid
// UTF-8) is captured base64-encoded with Mode set to "binary" so it
// lines up with a predicate's `base64` encoding option.
func NewRequestFromHTTP(r *http.Request) (*Request, error) {
	var body string
	var mode string
	if r.Body != nil {
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}

		contentType := r.Header.Get("Content-Type")
		if isBinaryContent(contentType, bodyBytes) {
			body = base64.StdEncoding.EncodeToString(bodyBytes)
			mode = "binary"
		} else {
			body = string(bodyBytes)
		}
	}

	query := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	// Preserve the canonical header name (Go canonicalizes to Title-Case).
	headers := make(map[string]string)
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}

	var form map[string]string
	contentType := r.Header.Get("Content-Type")
	if body != "" && mode != "binary" {
		form = parseFormData(contentType, body)
	}

	return &Request{
		RequestFrom: r.RemoteAddr,
		Method:      r.Method,
		Path:        r.URL.Path,
		Query:       query,
		Headers:     headers,
		Body:        body,
		Form:        form,
		IP:          ip,
		Mode:        mode,
	}, nil
}

func parseFormData(contentType, body string) map[string]string {
	ct := strings.ToLower(contentType)

	if strings.Contains(ct, "application/x-www-form-urlencoded") {
		values, err := url.ParseQuery(body)
		if err != nil {
			return nil
		}
		form := make(map[string]string)
		for k, v := range values {
			if len(v) > 0 {
				form[k] = v[0]
			}
		}
		return form
	}

	if strings.Contains(ct, "multipart/form-data") {
		mediaType, params, err := mime.ParseMediaType(contentType)
		if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
			return nil
		}
		boundary := params["boundary"]
		if boundary == "" {
			return nil
		}

		reader := multipart.NewReader(strings.NewReader(body), boundary)
		form := make(map[string]string)
		for {
			part, err := reader.NextPart()
			if err != nil {
				break
			}
			if part.FileName() != "" {
				part.Close()
				continue
			}
			name := part.FormName()
			if name == "" {
				part.Close()
				continue
			}
			fieldVal, err := io.ReadAll(part)
			part.Close()
			if err != nil {
				continue
			}
			form[name] = string(fieldVal)
		}
		if len(form) > 0 {
			return form
		}
	}

	return nil
}

func isBinaryContent(contentType string, data []byte) bool {
	ct := strings.ToLower(contentType)
	binaryTypes := []string{
		"application/octet-stream",
		"image/",
		"audio/",
		"video/",
		"application/pdf",
		"application/zip",
		"application/gzip",
		"application/x-tar",
	}
	for _, bt := range binaryTypes {
		if strings.Contains(ct, bt) {
			return true
		}
	}

	textTypes := []string{
		"text/",
		"application/json",
		"application/xml",
		"application/javascript",
		"application/x-www-form-urlencoded",
	}
	for _, tt := range textTypes {
		if strings.Contains(ct, tt) {
			return false
		}
	}

	if len(data) > 0 && !utf8.Valid(data) {
		return true
	}
	return false
}
