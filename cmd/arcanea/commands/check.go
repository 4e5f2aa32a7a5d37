package commands

import (
	"fmt"
	"io"
	"os"

	"arcanea/internal/formatter"
	"arcanea/internal/lexer"
	"arcanea/internal/parser"
)

// Check parses each file and reports it valid. The first syntax error is
// returned.
func Check(files []string, w io.Writer) error {
	for _, filename := range files {
		source, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}

		tokens := lexer.NewScannerWithFile(string(source), filename).ScanTokens()
		p := parser.NewParserWithSource(tokens, string(source), filename)
		if _, err := p.Parse(); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: syntax is valid\n", filename)
	}
	return nil
}

// Tokens writes the token stream of filename, one token per line.
func Tokens(filename string, w io.Writer) error {
	source, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	for _, tok := range lexer.NewScannerWithFile(string(source), filename).ScanTokens() {
		fmt.Fprintln(w, tok)
	}
	return nil
}

// Format rewrites each file in canonical layout. With write unset the
// formatted text goes to w instead.
func Format(files []string, write bool, w io.Writer) error {
	for _, filename := range files {
		source, err := os.ReadFile(filename)
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}
		formatted, err := formatter.Source(string(source), filename)
		if err != nil {
			return err
		}
		if !write {
			fmt.Fprint(w, formatted)
			continue
		}
		if err := os.WriteFile(filename, []byte(formatted), 0644); err != nil {
			return fmt.Errorf("error writing formatted file: %w", err)
		}
		fmt.Fprintf(w, "%s: formatted successfully\n", filename)
	}
	return nil
}
