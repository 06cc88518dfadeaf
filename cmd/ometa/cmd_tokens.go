package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dhamidi/ometa/highlight"
)

func newTokensCmd() *cobra.Command {
	var grammarName string
	var tokenRules []string
	var segments bool

	cmd := &cobra.Command{
		Use:   "tokens <grammar-file> <rule> [input-file]",
		Short: "List the token spans recorded while matching input",
		Long: `Match input against rule with token recording and print a table of the
spans of the token rules. Spans are listed even when the match fails.

Token rules are taken from --rules, then from token_rules in the config,
then from the grammar.

With --segments nested spans are split into the disjoint segments an
editor would style.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd.Context())
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

			rules := tokenRules
			if len(rules) == 0 {
				rules = cfg.TokenRules
			}
			h, err := highlight.New(g, args[1],
				highlight.WithTokenRules(rules...),
				highlight.WithSideEffects(cfg.SideEffectingRules...),
				highlight.WithoutMemoReuse(),
			)
			if err != nil {
				return err
			}
			text := string(input)
			res, err := h.Update(text)
			if err != nil {
				return fmt.Errorf("%s: %w", inputName, err)
			}

			ranges := res.Ranges
			if segments {
				ranges = highlight.Segments(text, ranges)
			}
			writeTokenTable(cmd, text, ranges)

			if res.Failure != nil {
				return fmt.Errorf("%s: %w", inputName, res.Failure)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&grammarName, "grammar", "g", "", "grammar to match with")
	cmd.Flags().StringSliceVar(&tokenRules, "rules", nil, "rules to record spans for")
	cmd.Flags().BoolVar(&segments, "segments", false, "split nested spans into disjoint segments")

	return cmd
}

const maxTokenText = 32

func writeTokenTable(cmd *cobra.Command, text string, ranges []highlight.Range) {
	runes := []rune(text)
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Start", "End", "Rule", "Args", "Text"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	for _, r := range ranges {
		args := make([]string, len(r.Args))
		for i, a := range r.Args {
			args[i] = fmt.Sprintf("%v", a)
		}
		table.Append([]string{
			strconv.Itoa(r.Start),
			strconv.Itoa(r.End),
			r.Rule,
			strings.Join(args, ", "),
			tokenText(runes, r),
		})
	}
	table.Render()
}

func tokenText(runes []rune, r highlight.Range) string {
	s := string(runes[r.Start:min(r.End, len(runes))])
	if len([]rune(s)) > maxTokenText {
		s = string([]rune(s)[:maxTokenText]) + "..."
	}
	return strconv.Quote(s)
}
