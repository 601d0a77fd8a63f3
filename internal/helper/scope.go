package helper

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/spf13/afero"
)

// DefaultTimeout bounds a single helper execution.
const DefaultTimeout = 5 * time.Second

// GlobalsVar is the predeclared variable through which a helper reads the
// globals, functions included, defined by helpers that ran before it.
const GlobalsVar = "globals"

// ImportPrefix prefixes the import name of an executed helper, so a later
// helper can also write helpers := import("helpers/billing").
const ImportPrefix = "helpers/"

// AllowedModules are the tengo stdlib modules a helper may import.
var AllowedModules = []string{"fmt", "strings", "math", "times", "text", "json"}

const (
	chunkVar = "__helper"
	fnVar    = "__fn"
	argsVar  = "__args"
	outVar   = "__out"
)

// Scope is the global helper namespace of an application. Each helper script
// runs at most once; the globals it defines become visible to every helper
// that runs after it (as globals.<name>) and to Go code through Get and Call.
//
// Compiled tengo functions are bound to the program that compiled them, so
// the scope keeps every executed helper as a chunk of one growing prelude.
// A later helper, an import of an earlier one and a Call all evaluate that
// prelude first. Helpers are expected to be free of side effects.
type Scope struct {
	runMu sync.Mutex

	mu       sync.RWMutex
	globals  map[string]tengo.Object
	funcs    map[string]struct{}
	executed map[string]struct{}
	prelude  strings.Builder
	modules  map[string]string
	caller   *tengo.Compiled
	timeout  time.Duration
}

// NewScope creates an empty helper scope.
func NewScope() *Scope {
	s := &Scope{
		globals:  make(map[string]tengo.Object),
		funcs:    make(map[string]struct{}),
		executed: make(map[string]struct{}),
		modules:  make(map[string]string),
		timeout:  DefaultTimeout,
	}
	s.prelude.WriteString(GlobalsVar + " := {}\n" + chunkVar + " := undefined\n")
	return s
}

// SetTimeout changes the per-helper execution limit.
func (s *Scope) SetTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

// Run executes the helper at path unless it has already run. Execution errors
// are returned unchanged in meaning, wrapped with the path.
func (s *Scope) Run(ctx context.Context, fs afero.Fs, path string) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	key := filepath.Clean(path)

	s.mu.Lock()
	if _, done := s.executed[key]; done {
		s.mu.Unlock()
		slog.Debug("Helper already executed, skipping", "path", key)
		return nil
	}
	s.executed[key] = struct{}{}
	prelude := s.prelude.String()
	timeout := s.timeout
	s.mu.Unlock()

	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read helper %s: %w", path, err)
	}

	names, err := s.declaredNames(src)
	if err != nil {
		return fmt.Errorf("helper %s failed: %w", path, err)
	}
	chunk := wrapChunk(src, names)

	script := tengo.NewScript([]byte(prelude + chunk))
	script.SetImports(s.importMap())

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	startTime := time.Now()
	compiled, err := script.RunContext(execCtx)
	if err != nil {
		return fmt.Errorf("helper %s failed: %w", path, err)
	}

	all, ok := compiled.Get(GlobalsVar).Object().(*tengo.Map)
	if !ok {
		return fmt.Errorf("helper %s failed: %s was reassigned", path, GlobalsVar)
	}

	s.mu.Lock()
	s.globals = make(map[string]tengo.Object, len(all.Value))
	s.funcs = make(map[string]struct{})
	for name, obj := range all.Value {
		if obj.CanCall() {
			s.funcs[name] = struct{}{}
			continue
		}
		s.globals[name] = obj
	}
	s.prelude.WriteString(chunk)
	module := ImportPrefix + strings.ToLower(filepath.Base(filepath.Dir(key)))
	s.modules[module] = s.prelude.String() + "export " + chunkVar + "\n"
	s.caller = nil
	s.mu.Unlock()

	slog.Debug("Helper executed",
		"path", path,
		"module", module,
		"exported", len(names),
		"execution_time", time.Since(startTime),
	)
	return nil
}

// declaredNames compiles src on its own and returns its top-level names.
func (s *Scope) declaredNames(src []byte) ([]string, error) {
	script := tengo.NewScript(src)
	script.SetImports(s.importMap())
	if err := script.Add(GlobalsVar, &tengo.Map{Value: map[string]tengo.Object{}}); err != nil {
		return nil, err
	}
	compiled, err := script.Compile()
	if err != nil {
		return nil, err
	}

	var names []string
	for _, v := range compiled.GetAll() {
		if v.Name() == GlobalsVar || strings.HasPrefix(v.Name(), "__") {
			continue
		}
		names = append(names, v.Name())
	}
	sort.Strings(names)
	return names, nil
}

// wrapChunk turns a helper body into a prelude chunk: the body runs inside its
// own function so redeclared names do not clash, and its names are copied into
// the shared globals map.
func wrapChunk(src []byte, names []string) string {
	fields := make([]string, len(names))
	for i, name := range names {
		fields[i] = name + ": " + name
	}

	var b strings.Builder
	b.WriteString(chunkVar + " = func() {\n")
	b.Write(src)
	b.WriteString("\nreturn {" + strings.Join(fields, ", ") + "}\n}()\n")
	b.WriteString("for __k, __v in " + chunkVar + " { " + GlobalsVar + "[__k] = __v }\n")
	return b.String()
}

func (s *Scope) importMap() *tengo.ModuleMap {
	imports := stdlib.GetModuleMap(AllowedModules...)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, src := range s.modules {
		imports.AddSourceModule(name, []byte(src))
	}
	return imports
}

// Call invokes a helper function by name with Go arguments and returns its
// result converted back to Go.
func (s *Scope) Call(ctx context.Context, name string, args ...any) (any, error) {
	s.mu.RLock()
	_, ok := s.funcs[name]
	timeout := s.timeout
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("helper function %s is not defined", name)
	}

	caller, err := s.callerProgram()
	if err != nil {
		return nil, err
	}
	c := caller.Clone()
	if err := c.Set(fnVar, name); err != nil {
		return nil, err
	}
	if args == nil {
		args = []any{}
	}
	if err := c.Set(argsVar, args); err != nil {
		return nil, fmt.Errorf("helper function %s: %w", name, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.RunContext(execCtx); err != nil {
		return nil, fmt.Errorf("helper function %s failed: %w", name, err)
	}
	return c.Get(outVar).Value(), nil
}

// callerProgram compiles the prelude followed by a dynamic call, once per
// executed helper.
func (s *Scope) callerProgram() (*tengo.Compiled, error) {
	s.mu.RLock()
	caller := s.caller
	src := s.prelude.String()
	s.mu.RUnlock()
	if caller != nil {
		return caller, nil
	}

	script := tengo.NewScript([]byte(src + outVar + " := " + GlobalsVar + "[" + fnVar + "](" + argsVar + "...)\n"))
	script.SetImports(s.importMap())
	if err := script.Add(fnVar, ""); err != nil {
		return nil, err
	}
	if err := script.Add(argsVar, []any{}); err != nil {
		return nil, err
	}
	compiled, err := script.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile helper caller: %w", err)
	}

	s.mu.Lock()
	s.caller = compiled
	s.mu.Unlock()
	return compiled, nil
}

// Executed reports whether the helper at path has run.
func (s *Scope) Executed(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.executed[filepath.Clean(path)]
	return ok
}

// Get returns the Go value of a helper data global.
func (s *Scope) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.globals[name]
	if !ok {
		return nil, false
	}
	return tengo.ToInterface(obj), true
}

// HasFunc reports whether a helper defined a function called name.
func (s *Scope) HasFunc(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.funcs[name]
	return ok
}

// Names returns every exported global name, functions included, sorted.
func (s *Scope) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.globals)+len(s.funcs))
	for name := range s.globals {
		names = append(names, name)
	}
	for name := range s.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
