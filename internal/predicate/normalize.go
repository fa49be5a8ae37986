package predicate

import "github.com/svc-virt/predicate-engine/internal/value"

// Options carries the normalizer's per-call knobs (§4.3): encoding,
// whether selector extraction applies (true only for the actual
// side), and whether force_strings applies (true only for
// deepEquals).
type Options struct {
	Encoding           string // "utf8" | "base64"
	WithSelectors      bool
	ShouldForceStrings bool
}

// Normalize walks v and applies, in order, key folding and the
// composed value transforms (selector extraction, except, case fold,
// base64 decode) described in §4.3, then forceStrings if requested.
// Sequences get the array_xform (sort-by-canonical-JSON) applied
// after their elements have themselves been normalized, so the sort
// key is computed over already-normalized content.
func Normalize(v value.Value, cfg Config, opts Options) (value.Value, error) {
	out, err := transformAll(v, cfg, opts)
	if err != nil {
		return value.Value{}, err
	}
	if opts.ShouldForceStrings {
		out = forceStrings(out)
	}
	return out, nil
}

func transformAll(v value.Value, cfg Config, opts Options) (value.Value, error) {
	switch v.Kind {
	case value.Sequence:
		out := make([]value.Value, len(v.SequenceVal))
		for i, el := range v.SequenceVal {
			norm, err := transformAll(el, cfg, opts)
			if err != nil {
				return value.Value{}, err
			}
			out[i] = norm
		}
		return value.NewSequence(value.SortByCanonicalJSON(out)...), nil

	case value.Record:
		keyXform := identityKeyXform
		if !cfg.KeyCaseSensitive {
			keyXform = lowercaseFold
		}
		out := make(map[string]value.Value, len(v.RecordVal))
		for k, el := range v.RecordVal {
			norm, err := transformAll(el, cfg, opts)
			if err != nil {
				return value.Value{}, err
			}
			out[keyXform(k)] = norm
		}
		return value.NewRecord(out), nil

	case value.String:
		return transformStringLeaf(v.StringVal, cfg, opts)

	default:
		return v, nil
	}
}

// transformStringLeaf applies the value-side pipeline to a single
// string leaf: selector extraction (may turn one string into a
// Sequence of strings), except, case fold, base64 decode. The last
// three apply element-wise when selector extraction produced a
// Sequence, and the Sequence itself gets array_xform applied once
// since it's otherwise invisible to the Sequence case above (the
// source Kind was String, not Sequence).
func transformStringLeaf(s string, cfg Config, opts Options) (value.Value, error) {
	v := value.NewString(s)

	if opts.WithSelectors && (cfg.XPath != nil || cfg.JSONPath != nil) {
		extracted, err := selectorExtract(s, cfg)
		if err != nil {
			return value.Value{}, err
		}
		v = extracted
	}

	exceptRe, err := compileExcept(cfg.Except, cfg.CaseSensitive)
	if err != nil {
		return value.Value{}, &ValidationError{Message: "invalid except pattern: " + err.Error(), Source: cfg.Except}
	}

	v = mapStrings(v, func(s string) string {
		s = applyExcept(s, exceptRe)
		if !cfg.CaseSensitive {
			s = lowercaseFold(s)
		}
		if opts.Encoding == "base64" {
			s = base64Decode(s)
		}
		return s
	})

	if v.Kind == value.Sequence {
		v = value.NewSequence(value.SortByCanonicalJSON(v.SequenceVal)...)
	}
	return v, nil
}

// mapStrings applies fn to v itself if it's a String, or to every
// element of v if it's a Sequence (the shape selector extraction can
// produce); any other Kind passes through untouched.
func mapStrings(v value.Value, fn func(string) string) value.Value {
	switch v.Kind {
	case value.String:
		return value.NewString(fn(v.StringVal))
	case value.Sequence:
		out := make([]value.Value, len(v.SequenceVal))
		for i, el := range v.SequenceVal {
			out[i] = mapStrings(el, fn)
		}
		return value.NewSequence(out...)
	default:
		return v
	}
}
