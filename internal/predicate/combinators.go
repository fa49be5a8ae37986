package predicate

// evaluateNot negates the inner predicate's result. Errors propagate
// unchanged — a malformed nested predicate still fails validation even
// though `not` would otherwise flip its boolean.
func evaluateNot(inner *Predicate, ctx EvalContext) (bool, error) {
	result, err := Eval(inner, ctx)
	if err != nil {
		return false, err
	}
	return !result, nil
}

// evaluateOr short-circuits on the first true branch.
func evaluateOr(branches []*Predicate, ctx EvalContext) (bool, error) {
	for _, b := range branches {
		result, err := Eval(b, ctx)
		if err != nil {
			return false, err
		}
		if result {
			return true, nil
		}
	}
	return false, nil
}

// evaluateAnd short-circuits on the first false branch.
func evaluateAnd(branches []*Predicate, ctx EvalContext) (bool, error) {
	for _, b := range branches {
		result, err := Eval(b, ctx)
		if err != nil {
			return false, err
		}
		if !result {
			return false, nil
		}
	}
	return true, nil
}
