package predicate

import (
	"fmt"

	"github.com/svc-virt/predicate-engine/internal/models"
	"github.com/svc-virt/predicate-engine/internal/value"
)

// Predicate is the JSON shape of a single match rule: exactly one
// operator key (a leaf comparison, a combinator, or inject) plus the
// sibling config options from §3 that apply to whichever leaf
// comparisons it contains.
type Predicate struct {
	Equals     *value.Value `json:"equals,omitempty"`
	DeepEquals *value.Value `json:"deepEquals,omitempty"`
	Contains   *value.Value `json:"contains,omitempty"`
	StartsWith *value.Value `json:"startsWith,omitempty"`
	EndsWith   *value.Value `json:"endsWith,omitempty"`
	Matches    *value.Value `json:"matches,omitempty"`
	Exists     *value.Value `json:"exists,omitempty"`

	Not *Predicate   `json:"not,omitempty"`
	And []*Predicate `json:"and,omitempty"`
	Or  []*Predicate `json:"or,omitempty"`

	Inject string `json:"inject,omitempty"`

	CaseSensitive bool `json:"caseSensitive,omitempty"`
	// KeyCaseSensitive defaults to CaseSensitive when omitted (§3), so
	// it must stay a pointer to distinguish "absent" from "explicit
	// false" — see resolvedKeyCaseSensitive.
	KeyCaseSensitive *bool     `json:"keyCaseSensitive,omitempty"`
	Except           string    `json:"except,omitempty"`
	XPath            *Selector `json:"xpath,omitempty"`
	JSONPath         *Selector `json:"jsonpath,omitempty"`
}

// resolvedKeyCaseSensitive applies the §3 default: an omitted
// keyCaseSensitive inherits caseSensitive rather than always folding.
func (p *Predicate) resolvedKeyCaseSensitive() bool {
	if p.KeyCaseSensitive != nil {
		return *p.KeyCaseSensitive
	}
	return p.CaseSensitive
}

// Logger is the predicate engine's sink for inject script log calls,
// narrow enough that callers can wire it to whatever structured
// logger they already use.
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
}

// EvalContext carries everything outside the predicate document itself
// that evaluation needs: the request being matched, the wire encoding
// ("utf8" or "base64"), a logger reachable from inject scripts, the
// per-stub imposter state blob, and whether this is a dry-run
// validation pass rather than a live match.
type EvalContext struct {
	Request       *models.Request
	Encoding      string
	Logger        Logger
	ImposterState map[string]interface{}
	IsDryRun      bool
}

// Eval is the top-level dispatcher (§7): it validates that exactly one
// operator key is present, then routes to the combinator, inject, or
// leaf-operator path.
func Eval(p *Predicate, ctx EvalContext) (bool, error) {
	if p == nil {
		return false, &ValidationError{Message: "predicate is empty"}
	}
	if n := operatorCount(p); n != 1 {
		return false, &ValidationError{
			Message: fmt.Sprintf("predicate must have exactly one operator key, found %d", n),
			Source:  p,
		}
	}

	switch {
	case p.Not != nil:
		return evaluateNot(p.Not, ctx)
	case p.And != nil:
		return evaluateAnd(p.And, ctx)
	case p.Or != nil:
		return evaluateOr(p.Or, ctx)
	case p.Inject != "":
		if ctx.IsDryRun {
			return true, nil
		}
		return evaluateInject(p.Inject, ctx)
	}

	cfg := Config{
		CaseSensitive:    p.CaseSensitive,
		KeyCaseSensitive: p.resolvedKeyCaseSensitive(),
		Except:           p.Except,
		XPath:            p.XPath,
		JSONPath:         p.JSONPath,
	}
	req := ctx.Request.ToValue()

	switch {
	case p.Equals != nil:
		return Evaluate(OpEquals, *p.Equals, req, cfg, ctx.Encoding)
	case p.DeepEquals != nil:
		return Evaluate(OpDeepEquals, *p.DeepEquals, req, cfg, ctx.Encoding)
	case p.Contains != nil:
		return Evaluate(OpContains, *p.Contains, req, cfg, ctx.Encoding)
	case p.StartsWith != nil:
		return Evaluate(OpStartsWith, *p.StartsWith, req, cfg, ctx.Encoding)
	case p.EndsWith != nil:
		return Evaluate(OpEndsWith, *p.EndsWith, req, cfg, ctx.Encoding)
	case p.Matches != nil:
		return Evaluate(OpMatches, *p.Matches, req, cfg, ctx.Encoding)
	case p.Exists != nil:
		return Evaluate(OpExists, *p.Exists, req, cfg, ctx.Encoding)
	}

	return false, &ValidationError{Message: "predicate has no recognized operator", Source: p}
}

// operatorCount counts how many of the mutually exclusive operator /
// combinator / inject keys are set on p.
func operatorCount(p *Predicate) int {
	n := 0
	for _, set := range []bool{
		p.Equals != nil,
		p.DeepEquals != nil,
		p.Contains != nil,
		p.StartsWith != nil,
		p.EndsWith != nil,
		p.Matches != nil,
		p.Exists != nil,
		p.Not != nil,
		len(p.And) > 0,
		len(p.Or) > 0,
		p.Inject != "",
	} {
		if set {
			n++
		}
	}
	return n
}
