// Package script evaluates visibility predicates written in Lua.
//
// A script defines a global function
//
//	function visible(el, opts) ... end
//
// called once per element per check. el carries the element's id, kind,
// classes, box and the result of the default test (el.in_viewport). opts
// carries the viewport size, offsets and threshold. The return value is
// interpreted with Lua truthiness.
//
// Scripts run in a state with only the base, table, string and math
// libraries, and each call is bounded by a timeout.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/inview/internal/inview"
)

// FuncName is the global function a predicate script must define.
const FuncName = "visible"

// DefaultTimeout bounds a single predicate call.
const DefaultTimeout = 50 * time.Millisecond

var (
	// ErrNoPredicate is returned when a script does not define FuncName.
	ErrNoPredicate = errors.New("script does not define function " + FuncName)

	// ErrClosed is returned when evaluating a closed script.
	ErrClosed = errors.New("script is closed")
)

// Attributed is implemented by elements that expose a kind and classes.
type Attributed interface {
	Kind() string
	Classes() []string
}

// Option configures a Script.
type Option func(*Script)

// WithTimeout sets the per-call timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Script) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for evaluation errors.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Script) { s.log = l }
}

// Script is a compiled predicate script. It is safe for concurrent use;
// calls are serialized.
type Script struct {
	name    string
	timeout time.Duration
	log     zerolog.Logger

	mu     sync.Mutex
	L      *lua.LState
	fn     *lua.LFunction
	closed bool

	failures atomic.Int64
}

// Load compiles the script at path.
func Load(path string, opts ...Option) (*Script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	return Compile(path, string(src), opts...)
}

// Compile runs src, which must define FuncName. name identifies the script
// in errors and logs.
func Compile(name, src string, opts ...Option) (*Script, error) {
	s := &Script{
		name:    name,
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	L.SetContext(ctx)
	err := L.DoString(src)
	L.RemoveContext()
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("loading script %s: %w", name, err)
	}

	fn, ok := L.GetGlobal(FuncName).(*lua.LFunction)
	if !ok {
		L.Close()
		return nil, fmt.Errorf("%s: %w", name, ErrNoPredicate)
	}

	s.L = L
	s.fn = fn
	return s, nil
}

func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "print"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Name returns the script's name.
func (s *Script) Name() string {
	return s.name
}

// Failures returns how many evaluations have failed.
func (s *Script) Failures() int64 {
	return s.failures.Load()
}

// Predicate returns an inview.Predicate backed by the script. Evaluation
// errors are logged and count as not visible.
func (s *Script) Predicate() inview.Predicate {
	return func(el inview.Element, opts *inview.Options) bool {
		ok, err := s.Eval(el, opts)
		if err != nil {
			s.failures.Add(1)
			s.log.Warn().Err(err).Str("script", s.name).Str("element", el.ElementID()).Msg("Predicate failed")
			return false
		}
		return ok
	}
}

// Eval calls the script's predicate for el.
func (s *Script) Eval(el inview.Element, opts *inview.Options) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}

	L := s.L
	elTable := s.elementTable(el, opts)
	optsTable := s.optionsTable(opts)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	L.SetContext(ctx)
	defer L.RemoveContext()

	top := L.GetTop()
	err := L.CallByParam(lua.P{Fn: s.fn, NRet: 1, Protect: true}, elTable, optsTable)
	if err != nil {
		L.SetTop(top)
		return false, fmt.Errorf("%s: %w", s.name, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret), nil
}

func (s *Script) elementTable(el inview.Element, opts *inview.Options) *lua.LTable {
	L := s.L
	t := L.NewTable()
	t.RawSetString("id", lua.LString(el.ElementID()))

	if a, ok := el.(Attributed); ok {
		t.RawSetString("kind", lua.LString(a.Kind()))
		classes := L.NewTable()
		for _, c := range a.Classes() {
			classes.Append(lua.LString(c))
		}
		t.RawSetString("classes", classes)
	}

	if g := opts.Geometry(); g != nil {
		box := g.Bounds(el)
		b := L.NewTable()
		b.RawSetString("top", lua.LNumber(box.Top))
		b.RawSetString("right", lua.LNumber(box.Right))
		b.RawSetString("bottom", lua.LNumber(box.Bottom))
		b.RawSetString("left", lua.LNumber(box.Left))
		b.RawSetString("width", lua.LNumber(box.Width))
		b.RawSetString("height", lua.LNumber(box.Height))
		t.RawSetString("box", b)
	}
	t.RawSetString("in_viewport", lua.LBool(inview.InViewport(el, opts)))
	return t
}

func (s *Script) optionsTable(opts *inview.Options) *lua.LTable {
	L := s.L
	t := L.NewTable()

	off := opts.Offset()
	o := L.NewTable()
	o.RawSetString("top", lua.LNumber(off.Top))
	o.RawSetString("right", lua.LNumber(off.Right))
	o.RawSetString("bottom", lua.LNumber(off.Bottom))
	o.RawSetString("left", lua.LNumber(off.Left))
	t.RawSetString("offset", o)
	t.RawSetString("threshold", lua.LNumber(opts.Threshold()))

	if g := opts.Geometry(); g != nil {
		vp := g.Viewport()
		v := L.NewTable()
		v.RawSetString("width", lua.LNumber(vp.Width))
		v.RawSetString("height", lua.LNumber(vp.Height))
		t.RawSetString("viewport", v)
	}
	return t
}

// Close releases the Lua state.
func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
