package interpreter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arcanea/internal/errors"
	"arcanea/internal/runtime"
)

type depthKey struct{}

func callDepth(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// invokeSpell is the spell call protocol: a fresh frame under the spell's
// closure, positional parameters (missing ones bound to nil, extras
// dropped), body statements in order, value of the last one returned.
func (in *Interpreter) invokeSpell(ctx context.Context, spell *runtime.Spell, args []runtime.Value) (runtime.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Newf(errors.RuntimeError, "spell %s cancelled: %v", spell.Name, err).WithCause(err)
	}

	depth := callDepth(ctx) + 1
	if depth > in.maxDepth {
		pos := spell.Decl.Pos()
		return nil, errors.NewRuntimeError(
			fmt.Sprintf("Maximum call depth exceeded (%d) in spell %s", in.maxDepth, spell.Name),
			pos.File, pos.Line, pos.Column).WithCause(errors.ErrCallDepth)
	}

	env := runtime.NewEnvironment(spell.Closure)
	for i, param := range spell.Decl.Params {
		var v runtime.Value
		if i < len(args) {
			v = args[i]
		}
		env.Define(param.Name, v)
	}

	if ce := in.logger.Check(zap.DebugLevel, "spell activation"); ce != nil {
		ce.Write(
			zap.String("spell", spell.Name),
			zap.String("activation", uuid.NewString()),
			zap.Int("depth", depth),
			zap.Int("args", len(args)),
		)
	}

	act := &activation{in: in, ctx: context.WithValue(ctx, depthKey{}, depth), env: env}
	var result runtime.Value
	for _, stmt := range spell.Decl.Body {
		v, err := act.eval(stmt)
		if err != nil {
			pos := stmt.Pos()
			ae := errors.Wrap(err, errors.RuntimeError)
			return nil, ae.AddStackFrame(spell.Name, pos.File, pos.Line, pos.Column)
		}
		result = v
	}
	return result, nil
}

// construct builds a record from positional arguments. Missing or nil
// arguments take the member default (evaluated in the archetype's defining
// frame) or stay nil.
func (in *Interpreter) construct(ctx context.Context, archetype *runtime.Archetype, args []runtime.Value) (runtime.Value, error) {
	members := archetype.Decl.Members
	fields := make(map[string]runtime.Value, len(members))
	closure := archetype.Closure
	if closure == nil {
		closure = in.globals
	}
	defaults := &activation{in: in, ctx: ctx, env: closure}

	for i, m := range members {
		var v runtime.Value
		switch {
		case i < len(args) && args[i] != nil:
			v = args[i]
		case m.Default != nil:
			dv, err := defaults.eval(m.Default)
			if err != nil {
				return nil, err
			}
			v = dv
		}

		if m.Type != "" && v != nil {
			subject := fmt.Sprintf("%s.%s (%s)", archetype.Name, m.Name, runtime.Stringify(v))
			if err := in.validate(m.Type, v, subject); err != nil {
				return nil, err.WithLocation(m.Position.File, m.Position.Line, m.Position.Column)
			}
		}
		fields[m.Name] = v
	}

	return runtime.NewRecord(archetype, archetype.MemberNames(), fields), nil
}

// validate checks v against a registered type or, failing that, an archetype.
func (in *Interpreter) validate(typeName string, v runtime.Value, subject string) *errors.ArcaneaError {
	if t, ok := in.registry.GetType(typeName); ok {
		if !t.Validate(v) {
			return errors.TypeValidation(typeName, subject)
		}
		return nil
	}
	if _, ok := in.registry.GetArchetype(typeName); ok {
		rec, isRecord := v.(*runtime.Record)
		if !isRecord || rec.Archetype == nil || rec.Archetype.Name != typeName {
			return errors.TypeValidation(typeName, subject)
		}
		return nil
	}
	return errors.UnknownArchetype(typeName)
}
