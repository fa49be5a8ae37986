package predicate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/buffer"
	"github.com/dop251/goja_nodejs/require"
)

// scriptPreviewLength bounds how much of a failing script gets echoed
// back in an InjectionError, so a multi-kilobyte inject body doesn't
// flood the error string.
const scriptPreviewLength = 100

// evaluateInject runs an `inject` predicate's JavaScript. The script
// must evaluate to a function of the single calling convention
// `fn(scope, logger, imposterState)`: scope is the request rendered as
// a plain JS object, logger exposes debug/info/warn/error, and
// imposterState is whatever the stub's handling has accumulated so far.
func evaluateInject(script string, ctx EvalContext) (bool, error) {
	vm := goja.New()
	new(require.Registry).Enable(vm)
	buffer.Enable(vm)

	scope := ctx.Request.ToValue().ToAny()
	vm.Set("logger", loggerObject(ctx.Logger))

	state := ctx.ImposterState
	if state == nil {
		state = map[string]interface{}{}
	}

	wrapped := fmt.Sprintf(`
		(function(scope, state) {
			var fn = %s;
			return fn(scope, logger, state);
		})
	`, script)

	fnVal, err := vm.RunString(wrapped)
	if err != nil {
		return false, injectError(err, script, ctx)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return false, &InjectionError{Message: "inject script did not evaluate to a function", Source: script}
	}

	result, err := fn(goja.Undefined(), vm.ToValue(scope), vm.ToValue(state))
	if err != nil {
		return false, injectError(err, script, ctx)
	}

	return result.ToBoolean(), nil
}

func injectError(err error, script string, ctx EvalContext) error {
	data := map[string]interface{}{"request": ctx.Request, "imposterState": ctx.ImposterState}
	if ctx.Logger != nil {
		scope, _ := json.MarshalIndent(ctx.Request, "", "    ")
		state, _ := json.MarshalIndent(ctx.ImposterState, "", "    ")
		ctx.Logger.Error(fmt.Sprintf("injection error: %v\n    source: %s\n    scope: %s\n    imposterState: %s",
			err, script, scope, state))
	}
	return &InjectionError{
		Message: fmt.Sprintf("%v (script: %s)", err, scriptPreview(script)),
		Source:  script,
		Data:    data,
		Err:     err,
	}
}

func scriptPreview(script string) string {
	script = strings.Join(strings.Fields(script), " ")
	if len(script) > scriptPreviewLength {
		return script[:scriptPreviewLength] + "..."
	}
	return script
}

// loggerObject adapts a Logger into the object shape goja scripts call
// logger.debug/info/warn/error(...) against.
func loggerObject(l Logger) map[string]interface{} {
	if l == nil {
		l = noopLogger{}
	}
	return map[string]interface{}{
		"debug": func(call goja.FunctionCall) goja.Value {
			l.Debug(exportArgs(call.Arguments)...)
			return goja.Undefined()
		},
		"info": func(call goja.FunctionCall) goja.Value {
			l.Info(exportArgs(call.Arguments)...)
			return goja.Undefined()
		},
		"warn": func(call goja.FunctionCall) goja.Value {
			l.Warn(exportArgs(call.Arguments)...)
			return goja.Undefined()
		},
		"error": func(call goja.FunctionCall) goja.Value {
			l.Error(exportArgs(call.Arguments)...)
			return goja.Undefined()
		},
	}
}

func exportArgs(args []goja.Value) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = a.Export()
	}
	return out
}

type noopLogger struct{}

func (noopLogger) Debug(args ...interface{}) {}
func (noopLogger) Info(args ...interface{})  {}
func (noopLogger) Warn(args ...interface{})  {}
func (noopLogger) Error(args ...interface{}) {}
