package executor

import (
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/sinas-io/burrow/pkg/types"
)

// engine wraps the embedded ECMAScript runtime. The persistent runtime
// holds load-mode functions across calls; inline calls each get a fresh,
// throwaway runtime so two inline executions can never see each other's
// definitions.
type engine struct {
	vm *goja.Runtime

	// loaded maps "namespace/name" to the global callable name the
	// compiled source actually defined.
	loaded map[string]string

	// claimed tracks globals already owned by earlier loads so a new
	// load's definitions can be told apart.
	claimed map[string]bool
}

func newEngine() *engine {
	return &engine{
		vm:      newRuntime(),
		loaded:  make(map[string]string),
		claimed: make(map[string]bool),
	}
}

// newRuntime creates a runtime whose Go values expose their json field
// names to scripts
func newRuntime() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return vm
}

// Load compiles source into the persistent namespace under key and records
// which global callable it defined. The callable is the new global function
// matching name, or failing that the first new global function.
func (e *engine) Load(key, name, code string) error {
	before := toSet(globalFunctions(e.vm))

	if _, err := e.vm.RunScript(key, code); err != nil {
		return fmt.Errorf("failed to compile %s: %w", key, err)
	}

	entry := ""
	for _, g := range globalFunctions(e.vm) {
		if before[g] || e.claimed[g] {
			continue
		}
		if g == name {
			entry = g
			break
		}
		if entry == "" {
			entry = g
		}
	}
	if entry == "" {
		// Re-registering the same source defines no new globals.
		if prev, ok := e.loaded[key]; ok {
			entry = prev
		} else {
			return fmt.Errorf("function %s defines no callable", key)
		}
	}

	e.claimed[entry] = true
	e.loaded[key] = entry
	return nil
}

// CallLoaded invokes a previously loaded function. The returned duration
// covers the invocation only, measured immediately around the call.
func (e *engine) CallLoaded(key string, input map[string]any, execCtx *types.ExecutionContext) (any, time.Duration, error) {
	entry, ok := e.loaded[key]
	if !ok {
		return nil, 0, fmt.Errorf("function %q not found in namespace", key)
	}

	fn, ok := goja.AssertFunction(e.vm.Get(entry))
	if !ok {
		return nil, 0, fmt.Errorf("global %q is no longer callable", entry)
	}

	return invoke(e.vm, fn, input, execCtx)
}

// CallInline compiles source into a fresh runtime and invokes its entry
// point: the global function matching name, else the first global function
// whose name does not start with an underscore.
func (e *engine) CallInline(name, code string, input map[string]any, execCtx *types.ExecutionContext) (any, time.Duration, error) {
	vm := newRuntime()

	if _, err := vm.RunScript(name, code); err != nil {
		return nil, 0, fmt.Errorf("failed to compile %s: %w", name, err)
	}

	if fn, ok := goja.AssertFunction(vm.Get(name)); ok {
		return invoke(vm, fn, input, execCtx)
	}

	for _, g := range globalFunctions(vm) {
		if strings.HasPrefix(g, "_") {
			continue
		}
		if fn, ok := goja.AssertFunction(vm.Get(g)); ok {
			return invoke(vm, fn, input, execCtx)
		}
	}

	return nil, 0, fmt.Errorf("no callable entry point found for %q", name)
}

// invoke calls fn(input, context) and exports the result to a plain Go value
func invoke(vm *goja.Runtime, fn goja.Callable, input map[string]any, execCtx *types.ExecutionContext) (any, time.Duration, error) {
	if input == nil {
		input = map[string]any{}
	}
	if execCtx == nil {
		execCtx = &types.ExecutionContext{}
	}

	start := time.Now()
	value, err := fn(goja.Undefined(), vm.ToValue(input), vm.ToValue(execCtx))
	duration := time.Since(start)
	if err != nil {
		return nil, duration, err
	}
	return value.Export(), duration, nil
}

// globalFunctions returns, in definition order, the enumerable global names
// bound to functions. Built-ins are non-enumerable, so these are exactly the
// script-defined ones.
func globalFunctions(vm *goja.Runtime) []string {
	var names []string
	for _, key := range vm.GlobalObject().Keys() {
		if _, ok := goja.AssertFunction(vm.Get(key)); ok {
			names = append(names, key)
		}
	}
	return names
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// errorMessage extracts the thrown value's message from a script error
func errorMessage(err error) string {
	if ex, ok := err.(*goja.Exception); ok {
		return ex.Value().String()
	}
	return err.Error()
}

// errorTraceback returns the script stack trace when one exists
func errorTraceback(err error) string {
	if ex, ok := err.(*goja.Exception); ok {
		return ex.String()
	}
	return ""
}
