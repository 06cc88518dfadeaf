package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/ebnf"

	"github.com/dhamidi/ometa/ebnf/convert"
	"github.com/dhamidi/ometa/format"
)

func newEbnfCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ebnf",
		Short: "EBNF grammar tools",
	}

	cmd.AddCommand(newEbnfCheckCmd())
	cmd.AddCommand(newEbnfConvertCmd())

	return cmd
}

func newEbnfCheckCmd() *cobra.Command {
	var startProduction string

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Parse and verify an EBNF grammar file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			f, err := os.Open(filename)
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			grammar, err := ebnf.Parse(filename, f)
			if err != nil {
				printErrors(cmd.ErrOrStderr(), err)
				return err
			}

			if startProduction == "" {
				return nil
			}
			if err := ebnf.Verify(grammar, startProduction); err != nil {
				printErrors(cmd.ErrOrStderr(), err)
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&startProduction, "start", "", "start production for verification (if empty, only checks syntax)")

	return cmd
}

func newEbnfConvertCmd() *cobra.Command {
	var startProduction string
	var grammarName string
	var parentName string
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert an EBNF grammar file into a grammar",
		Long: `Convert the productions of an EBNF file into rules of one grammar and
print it.

Productions whose name starts with a lower-case letter are lexical: their
literals are matched character by character. The others skip whitespace
before literals and before references to lexical productions.

The grammar is named after the file unless --name is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			f, err := os.Open(filename)
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			name := grammarName
			if name == "" {
				name = grammarNameOf(filename)
			}
			opts := []convert.Option{convert.WithStart(startProduction)}
			if parentName != "" {
				opts = append(opts, convert.WithParent(parentName))
			}
			tree, err := convert.Parse(filename, f, name, opts...)
			if err != nil {
				printErrors(cmd.ErrOrStderr(), err)
				return err
			}

			enc, err := format.NewEncoder(outputFormat, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return enc.Encode(tree)
		},
	}

	cmd.Flags().StringVar(&startProduction, "start", "", "start production, verified and placed first")
	cmd.Flags().StringVar(&grammarName, "name", "", "name of the grammar")
	cmd.Flags().StringVar(&parentName, "parent", "", "grammar to extend")
	cmd.Flags().StringVarP(&outputFormat, "format", "f", "ometa", "output format ("+strings.Join(format.Formats, ", ")+")")

	return cmd
}

// grammarNameOf derives a grammar name from a file name: "go_expr.ebnf"
// becomes "GoExpr".
func grammarNameOf(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	var sb strings.Builder
	for _, part := range strings.FieldsFunc(base, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) {
		sb.WriteString(strings.ToUpper(part[:1]) + part[1:])
	}
	if sb.Len() == 0 {
		return "Grammar"
	}
	return sb.String()
}

// printErrors prints every error of an error list, such as the one returned
// by ebnf.Parse, on its own line.
func printErrors(w io.Writer, err error) {
	v := reflect.ValueOf(err)
	if v.Kind() == reflect.Slice {
		for i := 0; i < v.Len(); i++ {
			fmt.Fprintln(w, v.Index(i).Interface())
		}
	} else {
		fmt.Fprintln(w, err)
	}
}
