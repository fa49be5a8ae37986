package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/svc-virt/predicate-engine/internal/models"
	"github.com/svc-virt/predicate-engine/internal/value"
)

func TestEval_NestedJSONBodyReachThrough(t *testing.T) {
	req := &models.Request{Body: `{"name":"Bob"}`}
	p := &Predicate{
		Equals: recordPtr(map[string]value.Value{
			"body": recordVal(map[string]value.Value{"name": value.NewString("bob")}),
		}),
	}

	ok, err := Eval(p, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_ArraySubset(t *testing.T) {
	// Headers is a flat single-value map on Request; array subset
	// matching is exercised here through the request body, where a
	// JSON array is a natural, transport-independent actual value.
	req := &models.Request{Body: `{"accept":["text/html","application/json"]}`}

	p := &Predicate{
		Equals: recordPtr(map[string]value.Value{
			"body": recordVal(map[string]value.Value{
				"accept": value.NewSequence(value.NewString("application/json")),
			}),
		}),
	}

	ok, err := Eval(p, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_XPathScalarCollapse(t *testing.T) {
	req := &models.Request{Body: "<doc><a>hi</a></doc>"}
	p := &Predicate{
		Equals: recordPtr(map[string]value.Value{"body": value.NewString("hi")}),
		XPath:  &Selector{Selector: "//a"},
	}

	ok, err := Eval(p, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_JSONPathCaseSensitiveKeys(t *testing.T) {
	req := &models.Request{Body: `{"Name":"Alice"}`}

	sensitive := &Predicate{
		Equals:        recordPtr(map[string]value.Value{"body": value.NewString("Alice")}),
		JSONPath:      &Selector{Selector: "$.Name"},
		CaseSensitive: true,
	}
	ok, err := Eval(sensitive, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)

	insensitive := &Predicate{
		Equals:   recordPtr(map[string]value.Value{"body": value.NewString("Alice")}),
		JSONPath: &Selector{Selector: "$.Name"},
	}
	ok, err = Eval(insensitive, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_MatchesPreservesRegexCase(t *testing.T) {
	req := &models.Request{Path: "/Users"}
	p := &Predicate{
		Matches: recordPtr(map[string]value.Value{"path": value.NewString("^/[Uu]sers$")}),
	}

	for _, cs := range []bool{true, false} {
		p.CaseSensitive = cs
		ok, err := Eval(p, EvalContext{Request: req, Encoding: "utf8"})
		assert.NoError(t, err)
		assert.True(t, ok, "caseSensitive=%v", cs)
	}
}

func TestEval_ExistsFalseOnEmptyQueryObject(t *testing.T) {
	req := &models.Request{}
	p := &Predicate{
		Exists: recordPtr(map[string]value.Value{"query": value.NewBool(false)}),
	}
	ok, err := Eval(p, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_NotOrAndComposition(t *testing.T) {
	req := &models.Request{Method: "GET", Path: "/orders"}

	equalsGET := &Predicate{Equals: recordPtr(map[string]value.Value{"method": value.NewString("GET")})}
	equalsPOST := &Predicate{Equals: recordPtr(map[string]value.Value{"method": value.NewString("POST")})}
	containsOrders := &Predicate{Contains: recordPtr(map[string]value.Value{"path": value.NewString("orders")})}

	notPost := &Predicate{Not: equalsPOST}
	ok, err := Eval(notPost, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)

	orPred := &Predicate{Or: []*Predicate{equalsPOST, equalsGET}}
	ok, err = Eval(orPred, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)

	andPred := &Predicate{And: []*Predicate{equalsGET, containsOrders}}
	ok, err = Eval(andPred, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_RejectsMultipleOperatorKeys(t *testing.T) {
	req := &models.Request{}
	p := &Predicate{
		Equals:   recordPtr(map[string]value.Value{"method": value.NewString("GET")}),
		Contains: recordPtr(map[string]value.Value{"path": value.NewString("x")}),
	}
	_, err := Eval(p, EvalContext{Request: req, Encoding: "utf8"})
	assert.Error(t, err)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestEval_DeepEqualsIteratesExpectedKeysOnly(t *testing.T) {
	req := &models.Request{Body: `{"name":"bob","extra":"field"}`}
	p := &Predicate{
		DeepEquals: recordPtr(map[string]value.Value{
			"body": recordVal(map[string]value.Value{"name": value.NewString("bob")}),
		}),
	}
	ok, err := Eval(p, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_KeyCaseSensitiveDefaultsToCaseSensitive(t *testing.T) {
	req := &models.Request{Body: `{"Name":"Alice"}`}

	sensitive := &Predicate{
		Equals:        recordPtr(map[string]value.Value{"body": value.NewString("Alice")}),
		JSONPath:      &Selector{Selector: "$.Name"},
		CaseSensitive: true,
	}
	ok, err := Eval(sensitive, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.True(t, ok, "keyCaseSensitive omitted should inherit caseSensitive=true, keeping $.Name matchable")

	falseKeyCase := false
	explicitOverride := &Predicate{
		Equals:           recordPtr(map[string]value.Value{"body": value.NewString("Alice")}),
		JSONPath:         &Selector{Selector: "$.Name"},
		CaseSensitive:    true,
		KeyCaseSensitive: &falseKeyCase,
	}
	ok, err = Eval(explicitOverride, EvalContext{Request: req, Encoding: "utf8"})
	assert.NoError(t, err)
	assert.False(t, ok, "an explicit keyCaseSensitive:false must still fold keys even when caseSensitive is true")
}

func recordVal(m map[string]value.Value) value.Value { return value.NewRecord(m) }

func recordPtr(m map[string]value.Value) *value.Value {
	v := value.NewRecord(m)
	return &v
}
