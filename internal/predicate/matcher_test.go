package predicate

import (
	"testing"

	"github.com/svc-virt/predicate-engine/internal/value"
)

func equalsLeaf(e, a string) bool { return e == a }

func TestPredicateSatisfied_ScalarField(t *testing.T) {
	expected := value.NewRecord(map[string]value.Value{"method": value.NewString("GET")})
	actual := value.NewRecord(map[string]value.Value{"method": value.NewString("GET")})

	if !PredicateSatisfied(OpEquals, expected, actual, Config{}, equalsLeaf) {
		t.Error("expected scalar field match to succeed")
	}
}

func TestPredicateSatisfied_SequenceSubset(t *testing.T) {
	expected := value.NewRecord(map[string]value.Value{
		"tags": value.NewSequence(value.NewString("b")),
	})
	actual := value.NewRecord(map[string]value.Value{
		"tags": value.NewSequence(value.NewString("a"), value.NewString("b"), value.NewString("c")),
	})

	if !PredicateSatisfied(OpEquals, expected, actual, Config{}, equalsLeaf) {
		t.Error("expected subset match to succeed")
	}
}

func TestPredicateSatisfied_SequenceSubsetFailsWhenMissing(t *testing.T) {
	expected := value.NewRecord(map[string]value.Value{
		"tags": value.NewSequence(value.NewString("z")),
	})
	actual := value.NewRecord(map[string]value.Value{
		"tags": value.NewSequence(value.NewString("a"), value.NewString("b")),
	})

	if PredicateSatisfied(OpEquals, expected, actual, Config{}, equalsLeaf) {
		t.Error("expected subset match to fail when an expected element is absent")
	}
}

func TestPredicateSatisfied_ExistsTrueOnSequenceAlwaysPasses(t *testing.T) {
	expected := value.NewRecord(map[string]value.Value{"tags": value.NewBool(true)})
	actual := value.NewRecord(map[string]value.Value{
		"tags": value.NewSequence(),
	})
	existsLeaf := func(e, a string) bool { return (e == "true") == (a != "") }

	if !PredicateSatisfied(OpExists, expected, actual, Config{}, existsLeaf) {
		t.Error("expected exists:true against a sequence field to always succeed")
	}
}

func TestPredicateSatisfied_ExistsOnPopulatedRecordField(t *testing.T) {
	existsLeaf := func(e, a string) bool { return (e == "true") == (a != "") }

	populated := value.NewRecord(map[string]value.Value{"query": value.NewRecord(map[string]value.Value{"id": value.NewString("42")})})
	empty := value.NewRecord(map[string]value.Value{"query": value.NewRecord(nil)})

	existsTrue := value.NewRecord(map[string]value.Value{"query": value.NewBool(true)})
	existsFalse := value.NewRecord(map[string]value.Value{"query": value.NewBool(false)})

	if !PredicateSatisfied(OpExists, existsTrue, populated, Config{}, existsLeaf) {
		t.Error("expected exists:true to succeed against a populated query object")
	}
	if PredicateSatisfied(OpExists, existsFalse, populated, Config{}, existsLeaf) {
		t.Error("expected exists:false to fail against a populated query object")
	}
	if !PredicateSatisfied(OpExists, existsFalse, empty, Config{}, existsLeaf) {
		t.Error("expected exists:false to succeed against an empty query object")
	}
}

func TestPredicateSatisfied_NestedRecord(t *testing.T) {
	expected := value.NewRecord(map[string]value.Value{
		"headers": value.NewRecord(map[string]value.Value{"accept": value.NewString("json")}),
	})
	actual := value.NewRecord(map[string]value.Value{
		"headers": value.NewRecord(map[string]value.Value{"accept": value.NewString("json"), "host": value.NewString("x")}),
	})

	if !PredicateSatisfied(OpEquals, expected, actual, Config{}, equalsLeaf) {
		t.Error("expected nested record field match to succeed")
	}
}

func TestPredicateSatisfied_BackwardsCompatOuterSequence(t *testing.T) {
	expected := value.NewRecord(map[string]value.Value{"name": value.NewString("bob")})
	actual := value.NewSequence(
		value.NewRecord(map[string]value.Value{"name": value.NewString("alice")}),
		value.NewRecord(map[string]value.Value{"name": value.NewString("bob")}),
	)

	if !PredicateSatisfied(OpEquals, expected, actual, Config{}, equalsLeaf) {
		t.Error("expected predicate to match against at least one element of the outer sequence")
	}
}

func TestPredicateSatisfied_StringActualReparsedAsJSON(t *testing.T) {
	expected := value.NewRecord(map[string]value.Value{"name": value.NewString("bob")})
	actual := value.NewString(`{"name":"bob"}`)

	if !PredicateSatisfied(OpEquals, expected, actual, Config{}, equalsLeaf) {
		t.Error("expected a JSON-in-string actual to be reached into")
	}
}
