package runtime

import (
	"context"

	"arcanea/internal/errors"
	"arcanea/internal/parser"
)

// SpellFunc runs a spell's call protocol. The evaluator installs it when the
// declaration is evaluated.
type SpellFunc func(ctx context.Context, spell *Spell, args []Value) (Value, error)

// Spell is a named callable closing over the environment it was declared in.
type Spell struct {
	Name    string
	Decl    *parser.SpellDecl
	Closure *Environment

	invoke SpellFunc
}

func NewSpell(decl *parser.SpellDecl, closure *Environment, invoke SpellFunc) *Spell {
	return &Spell{Name: decl.Name, Decl: decl, Closure: closure, invoke: invoke}
}

// Call runs the spell with positional arguments.
func (s *Spell) Call(ctx context.Context, args []Value) (Value, error) {
	if s.invoke == nil {
		return nil, errors.Newf(errors.InternalError, "spell %s has no evaluator attached", s.Name)
	}
	return s.invoke(ctx, s, args)
}

// Arity is the number of declared parameters.
func (s *Spell) Arity() int {
	return len(s.Decl.Params)
}

// ArchetypeFunc builds a record from constructor arguments.
type ArchetypeFunc func(ctx context.Context, archetype *Archetype, args []Value) (Value, error)

// Archetype is a named record shape. Members are data only; there is no
// inheritance between archetypes.
type Archetype struct {
	Name    string
	Decl    *parser.ArchetypeDecl
	Closure *Environment

	construct ArchetypeFunc
}

func NewArchetype(decl *parser.ArchetypeDecl, closure *Environment, construct ArchetypeFunc) *Archetype {
	return &Archetype{Name: decl.Name, Decl: decl, Closure: closure, construct: construct}
}

// Call constructs a record.
func (a *Archetype) Call(ctx context.Context, args []Value) (Value, error) {
	if a.construct == nil {
		return nil, errors.Newf(errors.InternalError, "archetype %s has no constructor attached", a.Name)
	}
	return a.construct(ctx, a, args)
}

// MemberNames returns the declared member names in order.
func (a *Archetype) MemberNames() []string {
	names := make([]string, len(a.Decl.Members))
	for i, m := range a.Decl.Members {
		names[i] = m.Name
	}
	return names
}
