package predicate

import (
	"encoding/json"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/ohler55/ojg/jp"
	"github.com/svc-virt/predicate-engine/internal/value"
)

// Selector is the predicate config shape for `xpath`/`jsonpath`:
// { selector: string, ns?: map[string]string }.
type Selector struct {
	Selector   string            `json:"selector"`
	Namespaces map[string]string `json:"ns,omitempty"`
}

// Config carries the predicate-config sibling keys from §3 of the
// spec: caseSensitive, keyCaseSensitive, except, xpath, jsonpath.
type Config struct {
	CaseSensitive    bool
	KeyCaseSensitive bool
	Except           string
	XPath            *Selector
	JSONPath         *Selector
}

// selectorExtract applies whichever selector cfg names to a single
// string leaf, returning a String when exactly one node/result
// matched, a Sequence of Strings for more than one, and an empty
// Sequence for none. With no selector configured it returns the
// original string unchanged as a String.
func selectorExtract(s string, cfg Config) (value.Value, error) {
	if cfg.XPath != nil {
		return xpathSelect(s, *cfg.XPath, cfg.CaseSensitive)
	}
	if cfg.JSONPath != nil {
		return jsonpathSelect(s, *cfg.JSONPath, cfg)
	}
	return value.NewString(s), nil
}

func collapse(matches []string) value.Value {
	switch len(matches) {
	case 0:
		return value.NewSequence()
	case 1:
		return value.NewString(matches[0])
	default:
		seq := make([]value.Value, len(matches))
		for i, m := range matches {
			seq[i] = value.NewString(m)
		}
		return value.NewSequence(seq...)
	}
}

// xpathSelect evaluates an XPath expression against the textual form
// of body. When caseSensitive is false, the selector string and
// namespace keys/values are lower-cased before selection, per §4.2.
func xpathSelect(body string, sel Selector, caseSensitive bool) (value.Value, error) {
	expr := sel.Selector
	ns := sel.Namespaces
	if !caseSensitive {
		expr = lowercaseFold(expr)
		if ns != nil {
			folded := make(map[string]string, len(ns))
			for k, v := range ns {
				folded[lowercaseFold(k)] = lowercaseFold(v)
			}
			ns = folded
		}
	}

	doc, err := xmlquery.Parse(strings.NewReader(body))
	if err != nil {
		// Not well-formed XML: the selector simply finds nothing, the
		// same fail-soft contract try_json uses for non-JSON strings.
		// Every string leaf in the request gets run through whichever
		// selector is configured, so this applies to plenty of fields
		// that were never meant to be XML.
		return value.NewSequence(), nil
	}

	nodes, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return value.Value{}, &ValidationError{Message: "invalid XPath expression: " + err.Error(), Source: expr}
	}

	matches := make([]string, 0, len(nodes))
	for _, n := range nodes {
		matches = append(matches, xmlNodeText(n))
	}
	return collapse(matches), nil
}

func xmlNodeText(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == xmlquery.AttributeNode {
		return n.InnerText()
	}
	return strings.TrimSpace(n.InnerText())
}

// jsonpathSelect parses body as JSON via try_json and evaluates the
// JSONPath selector against it. The parsed document is not passed
// through forceStrings first, even for deepEquals; matched scalars are
// rendered as strings afterwards by jsonResultString. Key case folding uses
// keyCaseSensitive, never caseSensitive, so `matches` predicates keep
// regex case semantics on values while keys still fold.
func jsonpathSelect(body string, sel Selector, cfg Config) (value.Value, error) {
	expr := sel.Selector
	if !cfg.CaseSensitive {
		expr = lowercaseFold(expr)
	}

	// Key folding uses keyCaseSensitive here, as §4.2 requires; value
	// case-folding and `except` stripping are deferred to the
	// normalizer's post-selector passes, so disable both for this
	// intermediate parse.
	keyFoldedCfg := cfg
	keyFoldedCfg.CaseSensitive = true
	keyFoldedCfg.Except = ""
	parsed, ok := tryJSON(body, keyFoldedCfg)
	if !ok {
		// Not JSON: selector simply finds nothing, consistent with
		// try_json's parse-failure-is-silent contract.
		return value.NewSequence(), nil
	}

	path, err := jp.ParseString(expr)
	if err != nil {
		return value.Value{}, &ValidationError{Message: "invalid JSONPath expression: " + err.Error(), Source: expr}
	}

	results := path.Get(parsed.ToAny())
	matches := make([]string, 0, len(results))
	for _, r := range results {
		matches = append(matches, jsonResultString(value.FromAny(r)))
	}
	return collapse(matches), nil
}

// jsonResultString renders a JSONPath match as a comparison string:
// scalars use the usual coercion, objects/arrays render as their JSON
// text so a selector like `$.tags` can still be compared wholesale.
func jsonResultString(v value.Value) string {
	if v.Kind == value.Sequence || v.Kind == value.Record {
		b, _ := json.Marshal(v.ToAny())
		return string(b)
	}
	return v.ScalarString()
}
