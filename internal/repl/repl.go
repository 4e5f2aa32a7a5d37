package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"arcanea/internal/interpreter"
	"arcanea/internal/lexer"
	"arcanea/internal/runtime"
)

const (
	prompt         = ">>> "
	continuePrompt = "... "
)

// REPL reads statements line by line and evaluates them in one global frame.
// Input with unbalanced braces keeps reading until the braces close.
type REPL struct {
	in     *interpreter.Interpreter
	input  io.Reader
	output io.Writer
	prompt bool
}

func New(in *interpreter.Interpreter, input io.Reader, output io.Writer) *REPL {
	return &REPL{in: in, input: input, output: output}
}

// WithPrompt turns prompts on or off.
func (r *REPL) WithPrompt(on bool) *REPL {
	r.prompt = on
	return r
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Run loops until input ends, "exit" is entered or ctx is done.
func (r *REPL) Run(ctx context.Context) error {
	if r.prompt {
		fmt.Fprintln(r.output, "Arcanea REPL | type 'exit' to quit, ':catalog' to list the registry")
	}
	scanner := bufio.NewScanner(r.input)

	var pending strings.Builder
	depth := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.prompt {
			if depth > 0 {
				fmt.Fprint(r.output, continuePrompt)
			} else {
				fmt.Fprint(r.output, prompt)
			}
		}
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()

		if depth == 0 {
			switch strings.TrimSpace(line) {
			case "":
				continue
			case "exit":
				return nil
			case ":catalog":
				r.printCatalog()
				continue
			}
		}

		pending.WriteString(line)
		pending.WriteString("\n")
		depth = braceDepth(pending.String())
		if depth > 0 {
			continue
		}

		r.eval(ctx, pending.String())
		pending.Reset()
		depth = 0
	}
	return scanner.Err()
}

// braceDepth counts unclosed braces in source. Braces inside string
// literals are not tokens and do not count.
func braceDepth(source string) int {
	depth := 0
	for _, tok := range lexer.Tokenize(source) {
		switch tok.Type {
		case lexer.TokenLBrace:
			depth++
		case lexer.TokenRBrace:
			depth--
		}
	}
	return depth
}

func (r *REPL) eval(ctx context.Context, source string) {
	v, err := r.in.EvalStatements(ctx, source, nil)
	if err != nil {
		fmt.Fprintln(r.output, err)
		return
	}
	if v != nil {
		fmt.Fprintf(r.output, "=> %s\n", runtime.Stringify(v))
	}
}

func (r *REPL) printCatalog() {
	cat := r.in.Registry().Catalog()
	rows := []struct {
		label string
		names []string
	}{
		{"spells", cat.Spells},
		{"archetypes", cat.Archetypes},
		{"functions", cat.Functions},
		{"types", cat.Types},
		{"modules", cat.Modules},
		{"variables", cat.Variables},
	}
	for _, row := range rows {
		fmt.Fprintf(r.output, "%-10s %s\n", row.label+":", strings.Join(row.names, ", "))
	}
}
