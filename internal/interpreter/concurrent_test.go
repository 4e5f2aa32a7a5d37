package interpreter

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"arcanea/internal/errors"
	"arcanea/internal/runtime"
)

func TestConcurrentCastsAreReentrant(t *testing.T) {
	in, reg, _ := newTestInterpreter(t)
	mustEval(t, in, `
@spell echo(v) { let local = v; local }
@spell twice(v) { [echo(v), echo(v)] }
@spell label(name) { let local = [name, "rune"]; local }
`)

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		g.Go(func() error {
			want := float64(i)
			got, err := reg.CastSpell(context.Background(), "twice", []runtime.Value{want})
			if err != nil {
				return err
			}
			list := got.([]runtime.Value)
			if list[0] != want || list[1] != want {
				return fmt.Errorf("activation %d saw %v", i, list)
			}
			return nil
		})
		g.Go(func() error {
			want := fmt.Sprintf("mage-%d", i)
			got, err := reg.CastSpell(context.Background(), "label", []runtime.Value{want})
			if err != nil {
				return err
			}
			list := got.([]runtime.Value)
			if list[0] != want || list[1] != "rune" {
				return fmt.Errorf("label activation %d saw %v", i, list)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestCastSpellAsyncThroughInterpreter(t *testing.T) {
	in, reg, out := newTestInterpreter(t)
	mustEval(t, in, `@spell greet(name) { print(name) }`)

	futures := make([]*runtime.Future, 8)
	for i := range futures {
		futures[i] = reg.CastSpellAsync(context.Background(), "greet", []runtime.Value{fmt.Sprintf("mage-%d", i)})
	}
	for i, f := range futures {
		v, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("mage-%d", i), v)
	}
	assert.Equal(t, 8, strings.Count(out.String(), "\n"))
}

func TestEvalAll(t *testing.T) {
	sources := []Source{
		{Name: "a.arc", Text: `@spell alpha() { "a" }`},
		{Name: "b.arc", Text: `@spell beta() { alpha() }`},
		{Name: "c.arc", Text: `@archetype Gamma { x }`},
	}

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			in, reg, _ := newTestInterpreter(t)

			results, err := in.EvalAll(context.Background(), sources, parallel)
			require.NoError(t, err)
			require.Len(t, results, 3)
			assert.IsType(t, &runtime.Spell{}, results[0])
			assert.IsType(t, &runtime.Archetype{}, results[2])

			v, err := reg.CastSpell(context.Background(), "beta", nil)
			require.NoError(t, err)
			assert.Equal(t, "a", v)
		})
	}
}

func TestEvalAllFailure(t *testing.T) {
	sources := []Source{
		{Name: "good.arc", Text: `@spell fine() { nil }`},
		{Name: "bad.arc", Text: `@spell broken( {`},
	}

	for _, parallel := range []bool{false, true} {
		in, _, _ := newTestInterpreter(t)
		_, err := in.EvalAll(context.Background(), sources, parallel)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad.arc")
		assert.True(t, errors.IsType(err, errors.SyntaxError))
	}
}
