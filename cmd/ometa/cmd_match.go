package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhamidi/ometa/ometa"
)

func newMatchCmd() *cobra.Command {
	var grammarName string
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "match <grammar-file> <rule> [input-file]",
		Short: "Match input against a rule of a grammar and print the result",
		Long: `Match the text of input-file, or of standard input, against rule and
print the value it produced.

The grammar is the last one in grammar-file unless --grammar names another.
A failure is reported with the line and column of the furthest character
that was read.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := loadGrammar(cmd, args[0], grammarName)
			if err != nil {
				return err
			}
			inputName := "-"
			if len(args) > 2 {
				inputName = args[2]
			}
			input, err := readSource(cmd, inputName)
			if err != nil {
				return err
			}

			m, err := g.NewMatcher(configFrom(cmd.Context()).matcherOptions()...)
			if err != nil {
				return err
			}
			v, err := m.MatchAll(string(input), args[1])
			if err != nil {
				var merr *ometa.MatchError
				if errors.As(err, &merr) && merr.Line > 0 {
					return fmt.Errorf("%s:%d:%d: %w", inputName, merr.Line, merr.Column, err)
				}
				return fmt.Errorf("%s: %w", inputName, err)
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				data, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}
			_, err = fmt.Fprintf(out, "%v\n", v)
			return err
		},
	}

	cmd.Flags().StringVarP(&grammarName, "grammar", "g", "", "grammar to match with")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "print the result as JSON")

	return cmd
}
