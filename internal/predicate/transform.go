package predicate

import (
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/svc-virt/predicate-engine/internal/value"
	"golang.org/x/text/cases"
)

var caseFolder = cases.Fold()

// lowercaseFold applies Unicode-aware case folding, used for both key
// folding and value case folding when caseSensitive/keyCaseSensitive
// is false.
func lowercaseFold(s string) string {
	return caseFolder.String(s)
}

// compileExcept compiles the `except` regex with the appropriate case
// flag. An empty pattern compiles to nil, meaning "no-op".
func compileExcept(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	if !caseSensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

// applyExcept removes every match of re from s. A nil re is identity.
func applyExcept(s string, re *regexp.Regexp) string {
	if re == nil {
		return s
	}
	return re.ReplaceAllString(s, "")
}

// base64Decode decodes standard base64 text to UTF-8. On malformed
// input it returns the original string unchanged — a garbled body is
// still something callers can legitimately try to match against
// (e.g. with `exists`), so this never fails the whole evaluation.
func base64Decode(s string) string {
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	return string(decoded)
}

// forceStrings recursively coerces every scalar leaf of v to its
// String form: Null -> "null", Bool -> "true"/"false", Number ->
// canonical decimal, String passes through. Sequences and Records
// keep their shape; only their leaves change Kind. Only deepEquals
// applies this.
func forceStrings(v value.Value) value.Value {
	switch v.Kind {
	case value.Sequence:
		out := make([]value.Value, len(v.SequenceVal))
		for i, el := range v.SequenceVal {
			out[i] = forceStrings(el)
		}
		return value.NewSequence(out...)
	case value.Record:
		out := make(map[string]value.Value, len(v.RecordVal))
		for k, el := range v.RecordVal {
			out[k] = forceStrings(el)
		}
		return value.NewRecord(out)
	case value.Null:
		// Unlike ScalarString's "undefined reads as empty string"
		// convention used elsewhere, force_strings renders Null as the
		// literal string "null" (§4.1).
		return value.NewString("null")
	default:
		return value.NewString(v.ScalarString())
	}
}

// tryJSON attempts to parse s as JSON. On success it returns the
// parsed value after running it through key-lowercase and
// value-except/case transforms (but never the array-sort transform —
// sorting here would invalidate indexed selectors like `$..title[1]`
// evaluated downstream). On parse failure it returns ok=false and the
// caller keeps treating s as a plain string.
func tryJSON(s string, cfg Config) (value.Value, bool) {
	var x interface{}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&x); err != nil {
		return value.Value{}, false
	}
	parsed := value.FromAny(normalizeJSONNumbers(x))
	return normalizeParsedJSON(parsed, cfg), true
}

// normalizeJSONNumbers converts json.Number produced by UseNumber()
// into float64 recursively so value.FromAny sees the Kinds it expects.
func normalizeJSONNumbers(x interface{}) interface{} {
	switch t := x.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, v := range t {
			out[k] = normalizeJSONNumbers(v)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, v := range t {
			out[i] = normalizeJSONNumbers(v)
		}
		return out
	default:
		return x
	}
}

// normalizeParsedJSON applies try_json's reduced transform set
// (key-lowercase, except, value-case) with no selector extraction, no
// base64 decode, and no array sort.
func normalizeParsedJSON(v value.Value, cfg Config) value.Value {
	exceptRe, _ := compileExcept(cfg.Except, cfg.CaseSensitive)
	keyXform := identityKeyXform
	if !cfg.KeyCaseSensitive {
		keyXform = lowercaseFold
	}
	var walk func(value.Value) value.Value
	walk = func(v value.Value) value.Value {
		switch v.Kind {
		case value.Sequence:
			out := make([]value.Value, len(v.SequenceVal))
			for i, el := range v.SequenceVal {
				out[i] = walk(el)
			}
			return value.NewSequence(out...)
		case value.Record:
			out := make(map[string]value.Value, len(v.RecordVal))
			for k, el := range v.RecordVal {
				out[keyXform(k)] = walk(el)
			}
			return value.NewRecord(out)
		case value.String:
			s := applyExcept(v.StringVal, exceptRe)
			if !cfg.CaseSensitive {
				s = lowercaseFold(s)
			}
			return value.NewString(s)
		default:
			return v
		}
	}
	return walk(v)
}

func identityKeyXform(k string) string { return k }
