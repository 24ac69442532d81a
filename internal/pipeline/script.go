package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/keybridge/internal/event"
)

// ScriptEntryPoint is the global function a filter script must define.
const ScriptEntryPoint = "accept"

// DefaultScriptTimeout bounds one call into a filter script.
const DefaultScriptTimeout = 2 * time.Millisecond

// ErrNoEntryPoint is returned when a script does not define accept.
var ErrNoEntryPoint = errors.New("filter script does not define " + ScriptEntryPoint)

// ScriptFilter is a Filter implemented in Lua. The script defines
//
//	function accept(kind, priority, age_ms) ... end
//
// where kind and priority are the names printed by event.Kind.String and
// event.Priority.String. A truthy result accepts the envelope.
//
// The Lua state only has the base, table, string and math libraries and
// cannot load code from disk. A script that errors or runs past Timeout
// accepts the envelope and the failure is counted; the filter never stalls
// the frame loop on a broken script.
//
// ScriptFilter is not safe for concurrent use.
type ScriptFilter struct {
	name    string
	L       *lua.LState
	fn      lua.LValue
	timeout time.Duration

	failures uint64
	lastErr  error
}

// ScriptOption configures a ScriptFilter.
type ScriptOption func(*ScriptFilter)

// WithScriptTimeout bounds each call into the script. Zero disables the bound.
func WithScriptTimeout(d time.Duration) ScriptOption {
	return func(f *ScriptFilter) {
		f.timeout = d
	}
}

// NewScriptFilter compiles source and looks up its accept function.
func NewScriptFilter(name, source string, opts ...ScriptOption) (*ScriptFilter, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, unsafe := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(unsafe, lua.LNil)
	}

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("loading filter script %s: %w", name, err)
	}

	fn := L.GetGlobal(ScriptEntryPoint)
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, name)
	}

	f := &ScriptFilter{
		name:    name,
		L:       L,
		fn:      fn,
		timeout: DefaultScriptTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// LoadScriptFilter reads a filter script from path.
func LoadScriptFilter(path string, opts ...ScriptOption) (*ScriptFilter, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading filter script: %w", err)
	}
	return NewScriptFilter(path, string(source), opts...)
}

// Name implements Filter.
func (f *ScriptFilter) Name() string { return "script:" + f.name }

// Accept implements Filter.
func (f *ScriptFilter) Accept(env event.Envelope, now time.Time) bool {
	if f.timeout > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		defer cancel()
		f.L.SetContext(ctx)
		defer f.L.RemoveContext()
	}

	err := f.L.CallByParam(lua.P{Fn: f.fn, NRet: 1, Protect: true},
		lua.LString(env.Kind().String()),
		lua.LString(env.Priority().String()),
		lua.LNumber(float64(env.Age(now).Microseconds())/1000),
	)
	if err != nil {
		f.failures++
		f.lastErr = err
		f.L.SetTop(0)
		return true
	}

	ret := f.L.Get(-1)
	f.L.Pop(1)
	return lua.LVAsBool(ret)
}

// Failures returns how many calls errored or timed out.
func (f *ScriptFilter) Failures() uint64 {
	return f.failures
}

// LastError returns the most recent script failure, if any.
func (f *ScriptFilter) LastError() error {
	return f.lastErr
}

// Close releases the Lua state.
func (f *ScriptFilter) Close() {
	f.L.Close()
}
