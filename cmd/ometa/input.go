package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dhamidi/ometa/compiler"
	"github.com/dhamidi/ometa/ometa"
)

// readSource reads the file filename, or standard input when it is empty or
// "-".
func readSource(cmd *cobra.Command, filename string) ([]byte, error) {
	if filename == "" || filename == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// loadGrammar compiles the grammar file filename and returns the grammar
// called name, or the last one in the file.
func loadGrammar(cmd *cobra.Command, filename, name string) (*ometa.Grammar, error) {
	src, err := readSource(cmd, filename)
	if err != nil {
		return nil, err
	}
	c, err := compiler.New(configFrom(cmd.Context()).compilerOptions()...)
	if err != nil {
		return nil, err
	}
	gs, err := c.Compile(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(gs) == 0 {
		return nil, fmt.Errorf("%s: no grammar", filename)
	}
	if name == "" {
		return gs[len(gs)-1], nil
	}
	g, ok := c.Env().Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%s: no grammar %s", filename, name)
	}
	return g, nil
}
