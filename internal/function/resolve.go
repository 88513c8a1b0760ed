package function

import (
	"context"
	"errors"
	"fmt"
)

// Callable is a locally executable function, looked up by name in a sandbox
// or an exposed module.
type Callable interface {
	Call(ctx context.Context, args Arguments) (Output, error)
}

// CallableFunc adapts an ordinary function to the Callable interface.
type CallableFunc func(ctx context.Context, args Arguments) (Output, error)

func (f CallableFunc) Call(ctx context.Context, args Arguments) (Output, error) {
	return f(ctx, args)
}

// Lookup is the capability shared by sandboxes and exposed modules: find a
// callable by name.
type Lookup interface {
	Lookup(name string) (Callable, bool)
}

// ErrSandboxMisconfigured is wrapped by SandboxLookupError.
var ErrSandboxMisconfigured = errors.New("sandbox does not provide the function")

// SandboxLookupError is returned when notebook mode routes a call to a sandbox
// that has no function of that name. The manifest and the sandbox disagree,
// so the error is not recovered.
type SandboxLookupError struct {
	Name string
}

func (e *SandboxLookupError) Error() string {
	return fmt.Sprintf("sandbox lookup of %q failed: %v", e.Name, ErrSandboxMisconfigured)
}

func (e *SandboxLookupError) Unwrap() error { return ErrSandboxMisconfigured }

// ResolutionKind tags which execution path a call takes.
type ResolutionKind int

const (
	ResolvedNone ResolutionKind = iota
	ResolvedDeclared
	ResolvedDynamic
)

// Resolution is the outcome of resolving a call name. Exactly one of Action
// and Callable is set unless Kind is ResolvedNone.
type Resolution struct {
	Kind     ResolutionKind
	Action   Action
	Callable Callable
	// Source names where the resolution came from: "declared", "sandbox",
	// "module" or "none".
	Source string
}

const (
	sourceDeclared = "declared"
	sourceSandbox  = "sandbox"
	sourceModule   = "module"
	sourceNone     = "none"
)

// resolveDeclared looks the name up in the manifest's action table.
func resolveDeclared(name string, m Manifest) Resolution {
	if name == "" {
		return Resolution{Kind: ResolvedNone, Source: sourceNone}
	}
	if action, ok := m.Actions()[name]; ok && action != nil {
		return Resolution{Kind: ResolvedDeclared, Action: action, Source: sourceDeclared}
	}
	return Resolution{Kind: ResolvedNone, Source: sourceNone}
}

// resolveDynamic finds a callable for a name that has no declared action.
// In notebook mode with a sandbox present the sandbox is authoritative and a
// miss is an error; otherwise the manifest's module is consulted and a miss
// resolves to nothing.
func resolveDynamic(name string, m Manifest, sandbox Lookup) (Resolution, error) {
	if m.Notebook() && sandbox != nil {
		fn, ok := sandbox.Lookup(name)
		if !ok {
			return Resolution{}, &SandboxLookupError{Name: name}
		}
		return Resolution{Kind: ResolvedDynamic, Callable: fn, Source: sourceSandbox}, nil
	}
	if m.HasModule() {
		if fn, ok := m.Module(name); ok && fn != nil {
			return Resolution{Kind: ResolvedDynamic, Callable: fn, Source: sourceModule}, nil
		}
	}
	return Resolution{Kind: ResolvedNone, Source: sourceNone}, nil
}
