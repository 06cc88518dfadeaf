package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhamidi/ometa/lsp"
)

func newLSPCmd() *cobra.Command {
	var grammarFile string
	var grammarName string
	var rule string
	var tokenRules []string

	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start a language server on stdin and stdout that highlights documents
with semantic tokens and reports match failures as diagnostics.

Without --grammar-file documents are grammar sources. Otherwise they are
matched against --rule of the grammar compiled from --grammar-file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd.Context())
			opts := []lsp.Option{lsp.WithSideEffects(cfg.SideEffectingRules...)}

			if grammarFile != "" {
				if rule == "" {
					return fmt.Errorf("--grammar-file requires --rule")
				}
				g, err := loadGrammar(cmd, grammarFile, grammarName)
				if err != nil {
					return err
				}
				opts = append(opts, lsp.WithGrammar(g, rule))
			}
			rules := tokenRules
			if len(rules) == 0 {
				rules = cfg.TokenRules
			}
			if len(rules) > 0 {
				opts = append(opts, lsp.WithTokenRules(rules...))
			}

			server := lsp.NewServer(version, opts...)
			return server.RunStdio()
		},
	}

	cmd.Flags().StringVar(&grammarFile, "grammar-file", "", "grammar file the documents are written in")
	cmd.Flags().StringVarP(&grammarName, "grammar", "g", "", "grammar of --grammar-file to use")
	cmd.Flags().StringVar(&rule, "rule", "", "rule documents are matched against")
	cmd.Flags().StringSliceVar(&tokenRules, "rules", nil, "rules to highlight")

	return cmd
}
