package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leeovery/quizstore/internal/csvrow"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/repository"
)

// parseMistakeKind accepts the kinds an incorrect attempt can be given.
func parseMistakeKind(kind string) (quiz.MistakeKind, error) {
	k := quiz.MistakeKind(strings.ToLower(strings.TrimSpace(kind)))
	if k == quiz.MistakeNone || !slices.Contains(quiz.KnownMistakeKinds, k) {
		var names []string
		for _, known := range quiz.KnownMistakeKinds {
			if known != quiz.MistakeNone {
				names = append(names, string(known))
			}
		}
		return "", fmt.Errorf("unknown mistake kind %q: want one of %s", kind, strings.Join(names, ", "))
	}
	return k, nil
}

func newAttemptCmd(e *env) *cobra.Command {
	var correct, incorrect, noCheck bool
	var kind, memo string
	cmd := &cobra.Command{
		Use:   "attempt <problem-id>",
		Short: "Record a scored attempt",
		Long: `Record a scored attempt. The problem must exist and its miss count is
raised by one for an incorrect answer and lowered by one for a correct answer.

With --no-check the attempt is appended without looking up the problem and
the miss count is left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if correct == incorrect {
				return errors.New("pass exactly one of --correct or --incorrect")
			}
			if correct && cmd.Flags().Changed("kind") {
				return errors.New("--kind only applies to incorrect attempts")
			}
			mistake := quiz.MistakeNone
			if incorrect {
				k, err := parseMistakeKind(kind)
				if err != nil {
					return err
				}
				mistake = k
			}

			s, err := e.openStore()
			if err != nil {
				return err
			}
			opts := e.repoOpts()
			attempts := repository.NewAttempts(s, opts...)
			attempt := quiz.NewAttempt(args[0], correct, mistake, memo, e.app.now())

			result := AttemptResult{MissCount: -1}
			if noCheck {
				result.Attempt, err = attempts.Insert(cmd.Context(), attempt)
			} else {
				var item quiz.Item
				scorer := repository.NewScorer(repository.NewProblems(s, opts...), attempts)
				result.Attempt, item, err = scorer.Record(cmd.Context(), attempt)
				result.MissCount = item.MissCount
			}
			if err != nil {
				return err
			}

			if e.quiet {
				fmt.Fprintln(e.app.Stdout, result.Attempt.ID)
				return nil
			}
			return e.out.FormatAttemptResult(e.app.Stdout, result)
		},
	}
	cmd.Flags().BoolVar(&correct, "correct", false, "the answer was correct")
	cmd.Flags().BoolVar(&incorrect, "incorrect", false, "the answer was incorrect")
	cmd.Flags().StringVarP(&kind, "kind", "k", string(quiz.MistakeOther), "mistake kind: reading, stroke, confusion, other")
	cmd.Flags().StringVarP(&memo, "memo", "m", "", "free-text note")
	cmd.Flags().BoolVar(&noCheck, "no-check", false, "skip the problem lookup and miss count update")
	return cmd
}

func newRescoreCmd(e *env) *cobra.Command {
	var correct, incorrect bool
	var kind string
	cmd := &cobra.Command{
		Use:   "rescore <attempt-id>",
		Short: "Change the verdict on a recorded attempt",
		Long: `Change the verdict on a recorded attempt and correct its problem's miss
count. Turning a correct attempt into an incorrect one raises the count by
two; the reverse lowers it by two, never below zero. Rescoring to the same
verdict changes nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if correct == incorrect {
				return errors.New("pass exactly one of --correct or --incorrect")
			}
			var mistake quiz.MistakeKind
			if cmd.Flags().Changed("kind") {
				if correct {
					return errors.New("--kind only applies to incorrect attempts")
				}
				k, err := parseMistakeKind(kind)
				if err != nil {
					return err
				}
				mistake = k
			}

			s, err := e.openStore()
			if err != nil {
				return err
			}
			opts := e.repoOpts()
			scorer := repository.NewScorer(repository.NewProblems(s, opts...), repository.NewAttempts(s, opts...))
			at, item, err := scorer.RescoreAttempt(cmd.Context(), args[0], correct, mistake)
			if err != nil {
				return err
			}
			if e.quiet {
				return nil
			}
			return e.out.FormatAttemptResult(e.app.Stdout, AttemptResult{Attempt: at, MissCount: item.MissCount})
		},
	}
	cmd.Flags().BoolVar(&correct, "correct", false, "the answer was correct")
	cmd.Flags().BoolVar(&incorrect, "incorrect", false, "the answer was incorrect")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "mistake kind for an incorrect verdict")
	return cmd
}

func newImportAttemptsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "import-attempts <file.csv>",
		Short: "Append attempts from a CSV file in one write",
		Long: `Append every attempt in a CSV file laid out like attempts.csv, ids
included. The file is written in one step: an id already in the store, or
repeated in the file, rejects the whole import. Problems are not looked up
and miss counts are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := csvrow.ReadFile(args[0])
			if err != nil {
				return err
			}
			var batch []quiz.Attempt
			for _, row := range t.Rows {
				if row.IsBlank() {
					continue
				}
				at, err := quiz.DecodeAttempt(row)
				if err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
				batch = append(batch, at)
			}

			s, err := e.openStore()
			if err != nil {
				return err
			}
			saved, err := repository.NewAttempts(s, e.repoOpts()...).InsertBatch(cmd.Context(), batch)
			if err != nil {
				return err
			}
			if e.quiet {
				for _, a := range saved {
					fmt.Fprintln(e.app.Stdout, a.ID)
				}
				return nil
			}
			return e.out.FormatAttemptList(e.app.Stdout, saved)
		},
	}
}

func newAttemptsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "attempts [problem-id]",
		Short: "List attempts, optionally for one problem",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			repo := repository.NewAttempts(s, e.repoOpts()...)

			var list []quiz.Attempt
			if len(args) == 1 {
				list, err = repo.ByItem(cmd.Context(), args[0])
			} else {
				list, err = repo.Load(cmd.Context())
			}
			if err != nil {
				return err
			}
			if e.quiet {
				for _, a := range list {
					fmt.Fprintln(e.app.Stdout, a.ID)
				}
				return nil
			}
			return e.out.FormatAttemptList(e.app.Stdout, list)
		},
	}
}
