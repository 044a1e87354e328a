package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
)

func newQuestionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "List the questionnaire with the accepted answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			bold := color.New(color.Bold)

			for i, q := range questionnaire.DefaultQuestions() {
				var accepts string
				switch q.Domain {
				case questionnaire.DomainChoice:
					accepts = strings.Join(q.Options, " | ")
				case questionnaire.DomainInteger:
					accepts = fmt.Sprintf("%d-%d", q.Min, q.Max)
				default:
					accepts = fmt.Sprintf("free text, up to %d characters", questionnaire.MaxTextLength)
				}
				_, _ = fmt.Fprintf(out, "%d. %s  --%s  (%s)\n", i+1, bold.Sprint(q.Prompt), flagName(q.Name), accepts)
			}
			return nil
		},
	}
}

func newColumnsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "Print the feature columns the model expects, in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(cmd.Context())
			if err != nil {
				return err
			}
			for _, column := range svc.Schema() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), column)
			}
			return nil
		},
	}
}
