package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/symptom-checker/internal/questionnaire"
)

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask",
		Short: "Answer the questionnaire one question at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := loadService(cmd.Context())
			if err != nil {
				return err
			}

			flow := questionnaire.NewFlow(questionnaire.DefaultQuestions())
			progress, err := askAll(flow, bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			result, err := svc.Assess(cmd.Context(), progress.Responses)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout())
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

// askAll prompts until every question has a valid answer. An invalid answer
// is reported and the same question is asked again.
func askAll(flow *questionnaire.Flow, in *bufio.Reader, out io.Writer) (questionnaire.Progress, error) {
	bold := color.New(color.Bold)
	warn := color.New(color.FgYellow)

	progress := flow.Start(questionnaire.KindSteps)
	for !flow.Complete(progress) {
		q, _ := flow.Current(progress)
		hint := ""
		if len(q.Options) > 0 {
			hint = " [" + strings.Join(q.Options, "/") + "]"
		}
		_, _ = fmt.Fprintf(out, "(%d/%d) %s%s ", progress.Step+1, flow.Len(), bold.Sprint(q.Prompt), hint)

		line, err := in.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return progress, fmt.Errorf("error reading input: %w", err)
			}
			if line == "" {
				return progress, fmt.Errorf("input ended before the questionnaire was complete")
			}
		}

		next, err := flow.Answer(progress, strings.TrimRight(line, "\r\n"))
		if err != nil {
			var answerErr *questionnaire.AnswerError
			if errors.As(err, &answerErr) {
				_, _ = warn.Fprintln(out, answerErr.Reason)
				continue
			}
			return progress, err
		}
		progress = next
	}
	return progress, nil
}
