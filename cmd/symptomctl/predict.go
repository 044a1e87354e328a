package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/symptom-checker/internal/prediction"
	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
)

func newPredictCommand() *cobra.Command {
	var asJSON bool
	questions := questionnaire.DefaultQuestions()

	command := &cobra.Command{
		Use:   "predict",
		Short: "Predict an outcome from answers given as flags",
		Long: "Predict an outcome from answers given as flags.\n" +
			"Questions left out are encoded the same way as an unanswered question.",
		Example: "  symptomctl predict --fever Yes --age 45 --gender Female --blood-pressure High",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			answers := make(map[string]string)
			for _, q := range questions {
				name := flagName(q.Name)
				if !cmd.Flags().Changed(name) {
					continue
				}
				raw, err := cmd.Flags().GetString(name)
				if err != nil {
					return err
				}
				value, err := q.Parse(raw)
				if err != nil {
					return err
				}
				answers[q.Name] = value
			}

			svc, err := loadService(cmd.Context())
			if err != nil {
				return err
			}
			result, err := svc.Assess(cmd.Context(), questionnaire.NewResponseSet(answers))
			if err != nil {
				return err
			}

			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	for _, q := range questions {
		command.Flags().String(flagName(q.Name), "", q.Prompt)
	}
	command.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return command
}

func printResult(w io.Writer, result prediction.Result) {
	outcome := color.New(color.FgGreen, color.Bold)
	if result.Outcome == prediction.OutcomePositive {
		outcome = color.New(color.FgRed, color.Bold)
	}
	_, _ = fmt.Fprintf(w, "Predicted Outcome: %s\n", outcome.Sprint(result.Outcome))
	_, _ = fmt.Fprintln(w, questionnaire.FormatConfidence(result.Confidence))
}
