package predicate

import "github.com/svc-virt/predicate-engine/internal/value"

// LeafFn compares a single normalized expected/actual scalar pair,
// e.g. substring containment for `contains`, regex match for
// `matches`. Undefined actual values are passed in as the empty
// string per §4.4.
type LeafFn func(expected, actual string) bool

// TestPredicate is the matcher's entry point (§4.4): if expected is a
// scalar, it's a direct leaf comparison; otherwise expected is a
// Record and dispatch continues into PredicateSatisfied.
func TestPredicate(op Op, expected, actual value.Value, cfg Config, leaf LeafFn) bool {
	if expected.Kind != value.Record {
		return leaf(expected.ScalarString(), actual.ScalarString())
	}
	return PredicateSatisfied(op, expected, actual, cfg, leaf)
}

// PredicateSatisfied walks expected (a Record) against actual field
// by field, applying the dispatch table from §4.4.
func PredicateSatisfied(op Op, expected, actual value.Value, cfg Config, leaf LeafFn) bool {
	// A string actual may itself be JSON carrying the fields we're
	// looking for — reach into it lazily, same re-parse try_json
	// performs elsewhere (§9 "lazy re-parsing of JSON-in-string").
	if actual.Kind == value.String {
		if parsed, ok := tryJSON(actual.StringVal, cfg); ok {
			actual = parsed
			if op == OpDeepEquals {
				actual = forceStrings(actual)
			}
		}
	}

	for field, expField := range expected.RecordVal {
		actField, hasField := lookupField(actual, field, cfg.KeyCaseSensitive)
		expIsSeq := expField.Kind == value.Sequence
		actIsSeq := actField.Kind == value.Sequence

		switch {
		case expIsSeq && actIsSeq:
			// Every element of expected must satisfy the predicate
			// against some element of actual (subset semantics, not
			// order-preserving).
			for _, ee := range expField.SequenceVal {
				if !anyMatches(op, ee, actField.SequenceVal, cfg, leaf) {
					return false
				}
			}

		case !expIsSeq && actIsSeq && op == OpExists && expField.Truthy():
			// `exists: true` against a sequence field always succeeds
			// — presence of the array is what's being asserted.

		case !expIsSeq && actIsSeq:
			// Expected scalar/record must satisfy the predicate
			// against at least one element of actual.
			if !anyMatches(op, expField, actField.SequenceVal, cfg, leaf) {
				return false
			}

		case op == OpExists && expField.Kind != value.Record && actField.Kind == value.Record:
			// `exists` against an object-valued field (headers, query,
			// form) can't go through ScalarString's scalar-only leaf
			// comparison — a populated object has no scalar form, but
			// it's still "defined". Definedness here means non-empty;
			// unlike the sequence-exists shortcut above, an empty object
			// counts as undefined.
			definedMarker := ""
			if actField.Truthy() {
				definedMarker = "x"
			}
			if !leaf(expField.ScalarString(), definedMarker) {
				return false
			}

		case !expIsSeq && !hasField && actual.Kind == value.Sequence:
			// Backwards-compatibility shim for predicates written
			// before array syntax existed: the field must match the same
			// field of at least one record element of the outer sequence.
			if !anyMatches(op, value.NewRecord(map[string]value.Value{field: expField}), actual.SequenceVal, cfg, leaf) {
				return false
			}

		case expField.Kind == value.Record:
			if !PredicateSatisfied(op, expField, actField, cfg, leaf) {
				return false
			}

		default:
			if !TestPredicate(op, expField, actField, cfg, leaf) {
				return false
			}
		}
	}

	return true
}

// anyMatches reports whether expected satisfies the predicate against
// at least one element of actuals.
func anyMatches(op Op, expected value.Value, actuals []value.Value, cfg Config, leaf LeafFn) bool {
	for _, a := range actuals {
		if TestPredicate(op, expected, a, cfg, leaf) {
			return true
		}
	}
	return false
}

// lookupField fetches a field from actual (which may not even be a
// Record, e.g. when actual is itself a bare sequence of records —
// see the backwards-compatibility row above). Undefined actual[field]
// is treated as empty string by the eventual leaf comparison, not here.
func lookupField(actual value.Value, field string, keyCaseSensitive bool) (value.Value, bool) {
	if actual.Kind != value.Record {
		return value.NewNull(), false
	}
	return actual.Field(field, keyCaseSensitive)
}
