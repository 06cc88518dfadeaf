package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dhamidi/ometa/compiler"
	"github.com/dhamidi/ometa/format"
)

func newCompileCmd() *cobra.Command {
	var dumpAST bool
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "compile [file]",
		Short: "Compile a grammar file and report its grammars",
		Long: `Compile the grammars of a file, or of standard input, and print one line
per grammar with its parent and rules.

With --ast the translated grammar trees are printed instead, after
optimization unless the config disables it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filename string
			if len(args) > 0 {
				filename = args[0]
			}
			src, err := readSource(cmd, filename)
			if err != nil {
				return err
			}
			c, err := compiler.New(configFrom(cmd.Context()).compilerOptions()...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dumpAST {
				trees, err := c.Translate(string(src))
				if err != nil {
					return fmt.Errorf("compile: %w", err)
				}
				enc, err := format.NewEncoder(outputFormat, out)
				if err != nil {
					return err
				}
				for _, t := range trees {
					if err := enc.Encode(t); err != nil {
						return fmt.Errorf("encode: %w", err)
					}
				}
				return nil
			}

			gs, err := c.Compile(string(src))
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}
			for _, g := range gs {
				parent := "-"
				if g.Parent != nil {
					parent = g.Parent.Name
				}
				fmt.Fprintf(out, "%s\t%s\t%s\n", g.Name, parent, strings.Join(g.RuleNames(), " "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dumpAST, "ast", false, "print the grammar trees instead of compiling")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "tree format ("+strings.Join(format.Formats, ", ")+")")

	return cmd
}
