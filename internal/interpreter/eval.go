package interpreter

import (
	"context"

	"arcanea/internal/errors"
	"arcanea/internal/parser"
	"arcanea/internal/runtime"
)

// activation evaluates nodes for one frame of execution. Each spell call
// gets its own activation, so the current environment is never shared
// between concurrent callers.
type activation struct {
	in  *Interpreter
	ctx context.Context
	env *runtime.Environment
}

var _ parser.Visitor = (*activation)(nil)

func (a *activation) eval(node parser.Node) (runtime.Value, error) {
	return node.Accept(a)
}

func (a *activation) nested() bool {
	return callDepth(a.ctx) > 0
}

func (a *activation) VisitProgram(node *parser.Program) (interface{}, error) {
	var result runtime.Value
	for _, decl := range node.Decls {
		v, err := a.eval(decl)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// VisitSpellDecl registers the spell globally at top level; inside a spell
// body it binds the spell in the local frame instead.
func (a *activation) VisitSpellDecl(node *parser.SpellDecl) (interface{}, error) {
	spell := runtime.NewSpell(node, a.env, a.in.invokeSpell)
	if a.nested() {
		a.env.Define(node.Name, spell)
		return spell, nil
	}
	a.in.registry.RegisterSpell(node.Name, spell)
	return spell, nil
}

func (a *activation) VisitArchetypeDecl(node *parser.ArchetypeDecl) (interface{}, error) {
	archetype := runtime.NewArchetype(node, a.env, a.in.construct)
	if a.nested() {
		a.env.Define(node.Name, archetype)
		return archetype, nil
	}
	a.in.registry.RegisterArchetype(node.Name, archetype)
	return archetype, nil
}

func (a *activation) VisitLetStmt(node *parser.LetStmt) (interface{}, error) {
	v, err := a.eval(node.Value)
	if err != nil {
		return nil, err
	}
	a.env.Define(node.Name, v)
	return v, nil
}

func (a *activation) VisitAssignStmt(node *parser.AssignStmt) (interface{}, error) {
	v, err := a.eval(node.Value)
	if err != nil {
		return nil, err
	}
	if err := a.env.Assign(node.Name, v); err != nil {
		if _, ok := a.in.registry.GetVariable(node.Name); ok {
			a.in.registry.SetVariable(node.Name, v)
			return v, nil
		}
		return nil, located(err, node)
	}
	return v, nil
}

func (a *activation) VisitExprStmt(node *parser.ExprStmt) (interface{}, error) {
	return a.eval(node.Expr)
}

func (a *activation) VisitCallExpr(node *parser.CallExpr) (interface{}, error) {
	callee, err := a.resolveCallee(node.Callee)
	if err != nil {
		return nil, err
	}

	args := make([]runtime.Value, 0, len(node.Args))
	for _, arg := range node.Args {
		v, err := a.eval(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	var result runtime.Value
	switch fn := callee.(type) {
	case *runtime.NativeFunction:
		result, err = fn.Call(a.ctx, args)
	case *runtime.Spell:
		result, err = fn.Call(a.ctx, args)
	case *runtime.Archetype:
		result, err = fn.Call(a.ctx, args)
	case runtime.Callable:
		result, err = fn.Call(a.ctx, args)
	default:
		return nil, located(errors.NotCallable(parser.Describe(node.Callee)), node)
	}
	if err != nil {
		return nil, located(errors.Wrap(err, errors.RuntimeError), node)
	}
	return result, nil
}

// resolveCallee evaluates the callee expression. A bare name that resolves
// nowhere is reported as an unknown spell.
func (a *activation) resolveCallee(expr parser.Expr) (runtime.Value, error) {
	ident, ok := expr.(*parser.Identifier)
	if !ok {
		return a.eval(expr)
	}
	if v, found := a.lookup(ident.Name); found {
		return v, nil
	}
	return nil, located(errors.UnknownSpell(ident.Name), ident)
}

func (a *activation) VisitIdentifier(node *parser.Identifier) (interface{}, error) {
	if v, found := a.lookup(node.Name); found {
		return v, nil
	}
	return nil, located(errors.UndefinedVariable(node.Name), node)
}

// lookup searches the environment chain, then the registry.
func (a *activation) lookup(name string) (runtime.Value, bool) {
	if v, err := a.env.Get(name); err == nil {
		return v, true
	}
	return a.in.registry.Resolve(name)
}

func (a *activation) VisitLiteral(node *parser.Literal) (interface{}, error) {
	return node.Value, nil
}

func (a *activation) VisitListExpr(node *parser.ListExpr) (interface{}, error) {
	list := make([]runtime.Value, 0, len(node.Elements))
	for _, e := range node.Elements {
		v, err := a.eval(e)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, nil
}

func (a *activation) VisitMemberExpr(node *parser.MemberExpr) (interface{}, error) {
	obj, err := a.eval(node.Object)
	if err != nil {
		return nil, err
	}
	rec, ok := obj.(*runtime.Record)
	if !ok {
		return nil, located(errors.Newf(errors.RuntimeError, "Cannot read member %s of %s",
			node.Name, runtime.TypeOf(obj)).WithCause(errors.ErrUnknownMember), node)
	}
	v, ok := rec.Get(node.Name)
	if !ok {
		return nil, located(errors.Newf(errors.ReferenceError, "Unknown member %s on %s",
			node.Name, rec.TypeName()).WithCause(errors.ErrUnknownMember), node)
	}
	return v, nil
}

// located stamps the node's position on err unless one is already recorded.
func located(err error, node parser.Node) error {
	ae := errors.Wrap(err, errors.RuntimeError)
	pos := node.Pos()
	return ae.WithLocation(pos.File, pos.Line, pos.Column)
}
