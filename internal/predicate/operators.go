package predicate

import (
	"regexp"
	"strings"

	"github.com/svc-virt/predicate-engine/internal/value"
)

// Op names a leaf operator, used by the matcher for the handful of
// rows whose behavior depends on which operator is running (the
// `exists`-on-sequence shortcut, deepEquals's force_strings pass).
type Op int

const (
	OpEquals Op = iota
	OpDeepEquals
	OpContains
	OpStartsWith
	OpEndsWith
	OpMatches
	OpExists
)

// Evaluate runs a single leaf operator's expected value against req,
// normalizing both sides per §3 invariant 1 (same transforms on both
// sides, except only actual gets selectors and only deepEquals gets
// force_strings) and then dispatching into the structural matcher.
func Evaluate(op Op, expected value.Value, req value.Value, cfg Config, encoding string) (bool, error) {
	if encoding == "base64" && (cfg.XPath != nil || cfg.JSONPath != nil) {
		return false, &ValidationError{Message: "selectors are not supported in base64 mode"}
	}
	if encoding == "base64" && op == OpMatches {
		return false, &ValidationError{Message: "matches is not supported in base64 mode"}
	}

	expectedOpts := Options{Encoding: encoding, WithSelectors: false, ShouldForceStrings: op == OpDeepEquals}
	actualOpts := Options{Encoding: encoding, WithSelectors: true, ShouldForceStrings: op == OpDeepEquals}

	leafCfg := cfg
	if op == OpMatches {
		// §4.5: matches never lower-cases the value side (regex
		// metacharacters/capitals must survive) but keys still fold
		// per the caller's original keyCaseSensitive.
		leafCfg.CaseSensitive = true
	}

	normExpected, err := Normalize(expected, leafCfg, expectedOpts)
	if err != nil {
		return false, err
	}
	normActual, err := Normalize(req, leafCfg, actualOpts)
	if err != nil {
		return false, err
	}

	leaf, err := leafFn(op, cfg)
	if err != nil {
		return false, err
	}

	return TestPredicate(op, normExpected, normActual, leafCfg, leaf), nil
}

// leafFn builds the scalar comparator for op. cfg is the predicate's
// original (pre-override) config, needed by `matches` to decide regex
// case-sensitivity independent of the normalization override above.
func leafFn(op Op, cfg Config) (LeafFn, error) {
	switch op {
	case OpEquals, OpDeepEquals:
		return func(e, a string) bool { return e == a }, nil

	case OpContains:
		return func(e, a string) bool { return strings.Contains(a, e) }, nil

	case OpStartsWith:
		return func(e, a string) bool { return strings.HasPrefix(a, e) }, nil

	case OpEndsWith:
		return func(e, a string) bool { return strings.HasSuffix(a, e) }, nil

	case OpExists:
		return func(e, a string) bool {
			want := e == "true"
			defined := a != ""
			return defined == want
		}, nil

	case OpMatches:
		pattern := ""
		if !cfg.CaseSensitive {
			pattern = "(?i)"
		}
		return func(e, a string) bool {
			re, err := regexp.Compile(pattern + e)
			if err != nil {
				return false
			}
			return re.MatchString(a)
		}, nil
	}
	return nil, &ValidationError{Message: "unknown operator"}
}
