package funnel

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"runtime"
	"slices"

	"github.com/dmitrymomot/funnel/core/logger"
)

// TerminalLevel marks the end of a level chain: the universal base that
// holds no user-defined members and is never processed.
const TerminalLevel = -1

// constructorMember is the reserved member name for a level's constructor.
// It is never wrapped.
const constructorMember = "constructor"

// Level is one link in a bundle's member chain. A level owns its members
// independently of its ancestors and descendants.
type Level struct {
	name    string
	parent  int
	members map[string]any
}

// Name returns the level's diagnostic name.
func (l *Level) Name() string { return l.name }

// Parent returns the index of the parent level, or TerminalLevel.
func (l *Level) Parent() int { return l.parent }

// Bundle is a class-like entity: an arena of member-holding levels linked by
// parent indexes. Wrapping mutates member entries in place, so everything
// dispatching through the bundle observes the wrapped members.
type Bundle struct {
	name   string
	levels []*Level
	root   int
}

// NewBundle creates an empty bundle.
func NewBundle(name string) *Bundle {
	return &Bundle{name: name, root: TerminalLevel}
}

// Name returns the bundle's diagnostic name.
func (b *Bundle) Name() string { return b.name }

// Len returns the number of levels in the arena.
func (b *Bundle) Len() int { return len(b.levels) }

// Level returns the level at index i, or nil when out of range.
func (b *Bundle) Level(i int) *Level {
	if !b.validLevel(i) {
		return nil
	}
	return b.levels[i]
}

// AddLevel appends a level holding the given members and returns its index.
// parent is the index of another level or TerminalLevel; it does not have to
// exist yet, which permits chains built out of order. The most recently
// added level becomes the bundle's own (most derived) level.
func (b *Bundle) AddLevel(name string, parent int, members map[string]any) int {
	if members == nil {
		members = make(map[string]any)
	}
	b.levels = append(b.levels, &Level{name: name, parent: parent, members: members})
	b.root = len(b.levels) - 1
	return b.root
}

// Member resolves a callable member by name, walking the chain from the most
// derived level upward. Traversal visits each level at most once, so cyclic
// parent links terminate.
func (b *Bundle) Member(name string) (*Callable, error) {
	visited := make(map[int]bool)
	for idx := b.root; b.validLevel(idx) && !visited[idx]; {
		visited[idx] = true
		lvl := b.levels[idx]
		if m, ok := lvl.members[name]; ok && name != constructorMember {
			if c, ok := asCallable(name, m); ok {
				return c, nil
			}
		}
		idx = lvl.parent
	}
	return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMember, b.name, name)
}

// Invoke resolves a member and invokes it through the variadic surface.
func (b *Bundle) Invoke(member string, args ...any) (any, error) {
	c, err := b.Member(member)
	if err != nil {
		return nil, err
	}
	return c.Invoke(args...), nil
}

func (b *Bundle) validLevel(idx int) bool {
	return idx >= 0 && idx < len(b.levels)
}

// WrapBundle wraps every callable member at every reachable level in place,
// exactly once per member. Constructors and non-callable members are
// skipped. A wrapping failure on one member is diagnosed and skipped; the
// remaining members are still wrapped. The visited-index set guarantees
// termination even when parent links form a cycle or revisit a level.
func WrapBundle(b *Bundle, opts ...Option) (*Bundle, error) {
	if b == nil {
		return nil, ErrNilBundle
	}
	o := newOptions(opts...)

	visited := make(map[int]bool)
	for idx := b.root; b.validLevel(idx) && !visited[idx]; {
		visited[idx] = true
		lvl := b.levels[idx]
		wrapLevel(b.name, lvl, o, opts)
		idx = lvl.parent
	}
	return b, nil
}

func wrapLevel(bundle string, lvl *Level, o *options, opts []Option) {
	for _, name := range slices.Sorted(maps.Keys(lvl.members)) {
		if name == constructorMember {
			continue
		}
		c, ok := asCallable(name, lvl.members[name])
		if !ok {
			o.logger.Debug("skipping non-callable bundle member",
				slog.String("bundle", bundle),
				logger.BundleLevel(lvl.name),
				logger.Member(name))
			continue
		}
		w, err := WrapCallable(c, opts...)
		if err != nil {
			o.logger.Error("failed to wrap bundle member, left unwrapped",
				slog.String("bundle", bundle),
				logger.BundleLevel(lvl.name),
				logger.Member(name),
				logger.Error(err))
			continue
		}
		lvl.members[name] = w
	}
}

// asCallable views a member value as a Callable without mutating it.
func asCallable(name string, member any) (*Callable, bool) {
	switch m := member.(type) {
	case *Callable:
		return m, m != nil
	case HandlerFunc:
		return NewHandler(name, m), m != nil
	case func(*Context, Next) any:
		return NewHandler(name, m), m != nil
	case ErrorHandlerFunc:
		return NewErrorHandler(name, m), m != nil
	case func(error, *Context, Next) any:
		return NewErrorHandler(name, m), m != nil
	default:
		return nil, false
	}
}

// FromController derives a bundle from a controller: a non-nil struct
// pointer whose embedded structs form the level chain and whose exported
// handler-shaped methods form the members. Methods promoted from an
// embedded level belong to that level, not to the embedding one. Unexported
// embedded fields are not traversed.
func FromController(ctrl any) (*Bundle, error) {
	rv := reflect.ValueOf(ctrl)
	if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: got %T", ErrNotController, ctrl)
	}

	// Most derived first; each embedded struct is one level.
	chain := []reflect.Value{rv}
	for {
		parent, ok := embeddedLevel(chain[len(chain)-1])
		if !ok {
			break
		}
		chain = append(chain, parent)
	}

	// Build base-first so parent indexes reference existing levels.
	b := NewBundle(rv.Elem().Type().Name())
	parent := TerminalLevel
	for i := len(chain) - 1; i >= 0; i-- {
		var inherited map[string]bool
		if i < len(chain)-1 {
			inherited = methodNames(chain[i+1].Type())
		}
		lv := chain[i]
		parent = b.AddLevel(lv.Elem().Type().Name(), parent, ownHandlerMethods(lv, inherited))
	}
	return b, nil
}

// embeddedLevel returns a pointer to the first exported anonymous struct
// field of *v, the single-inheritance parent of the level.
func embeddedLevel(v reflect.Value) (reflect.Value, bool) {
	elem := v.Elem()
	t := elem.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.Anonymous || f.PkgPath != "" {
			continue
		}
		fv := elem.Field(i)
		switch {
		case f.Type.Kind() == reflect.Struct:
			return fv.Addr(), true
		case f.Type.Kind() == reflect.Pointer && f.Type.Elem().Kind() == reflect.Struct:
			if fv.IsNil() {
				return reflect.Value{}, false
			}
			return fv, true
		}
	}
	return reflect.Value{}, false
}

// ownHandlerMethods collects the handler-shaped methods declared at this
// level: exported methods of the level's pointer type that are not promoted
// from its parent. A method whose name also exists on the parent is still an
// own member when the level re-declares it, so overrides shadow the parent
// version during chain lookup. Bound method values keep the controller
// instance as the receiver.
func ownHandlerMethods(v reflect.Value, inherited map[string]bool) map[string]any {
	members := make(map[string]any)
	t := v.Type()
	for i := range t.NumMethod() {
		m := t.Method(i)
		if !m.IsExported() {
			continue
		}
		if inherited[m.Name] && !declaredOn(t, m.Name) {
			continue
		}
		switch fn := v.Method(i).Interface().(type) {
		case func(*Context, Next) any:
			members[m.Name] = HandlerFunc(fn)
		case func(error, *Context, Next) any:
			members[m.Name] = ErrorHandlerFunc(fn)
		}
	}
	return members
}

// declaredOn reports whether the named method is declared on the level's own
// type rather than promoted from an embedded one. Promotion generates
// wrapper methods that the runtime attributes to <autogenerated> positions,
// while declared methods keep their source location. Both the pointer and
// the value method sets are checked, so value-receiver declarations count.
func declaredOn(t reflect.Type, name string) bool {
	if m, ok := t.MethodByName(name); ok && hasSourceLocation(m) {
		return true
	}
	if t.Kind() == reflect.Pointer {
		if m, ok := t.Elem().MethodByName(name); ok && hasSourceLocation(m) {
			return true
		}
	}
	return false
}

func hasSourceLocation(m reflect.Method) bool {
	f := runtime.FuncForPC(m.Func.Pointer())
	if f == nil {
		return false
	}
	file, _ := f.FileLine(f.Entry())
	return file != "<autogenerated>"
}

func methodNames(t reflect.Type) map[string]bool {
	names := make(map[string]bool, t.NumMethod())
	for i := range t.NumMethod() {
		names[t.Method(i).Name] = true
	}
	return names
}
