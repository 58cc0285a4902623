package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leeovery/quizstore/internal/furigana"
	"github.com/leeovery/quizstore/internal/quiz"
	"github.com/leeovery/quizstore/internal/repository"
	"github.com/leeovery/quizstore/internal/storage"
)

// suggester is shared so the dictionary loads at most once per process.
var suggester = furigana.New()

func newInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the data directory and empty data files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := storage.Init(e.cfg.DataDir, storage.WithLogger(e.logger))
			if err != nil {
				return err
			}
			return e.message(fmt.Sprintf("Initialized quizstore in %s", s.Dir()))
		},
	}
}

func newAddCmd(e *env) *cobra.Command {
	var prompt, answer, reading, id string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a problem",
		Long: `Add a problem. The answer must appear in the prompt and contain kanji.
When --reading is omitted it is suggested from the answer using the IPA dictionary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if reading == "" {
				suggested, err := suggester.Suggest(answer)
				if err != nil {
					return fmt.Errorf("no reading given and none could be suggested for %q: %w", answer, err)
				}
				e.logger.Debug("reading suggested", zap.String("answer", answer), zap.String("reading", suggested))
				reading = suggested
			}

			s, err := e.openStore()
			if err != nil {
				return err
			}
			item := quiz.NewItem(prompt, answer, reading, e.app.now())
			if id != "" {
				item.ID = id
			}
			item, err = repository.NewProblems(s, e.repoOpts()...).Insert(cmd.Context(), item)
			if err != nil {
				return err
			}
			if e.quiet {
				fmt.Fprintln(e.app.Stdout, item.ID)
				return nil
			}
			return e.out.FormatItemDetail(e.app.Stdout, ItemDetail{Item: item})
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "prompt sentence containing the answer")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "answer token (kanji)")
	cmd.Flags().StringVarP(&reading, "reading", "r", "", "reading in kana")
	cmd.Flags().StringVar(&id, "id", "", "explicit id (default: random UUID)")
	_ = cmd.MarkFlagRequired("prompt")
	_ = cmd.MarkFlagRequired("answer")
	return cmd
}

func newUpdateCmd(e *env) *cobra.Command {
	var prompt, answer, reading string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a problem's text fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("prompt") && !flags.Changed("answer") && !flags.Changed("reading") {
				return errors.New("nothing to update: pass --prompt, --answer or --reading")
			}

			s, err := e.openStore()
			if err != nil {
				return err
			}
			problems := repository.NewProblems(s, e.repoOpts()...)
			item, err := problems.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flags.Changed("prompt") {
				item.PromptText = prompt
			}
			if flags.Changed("answer") {
				item.AnswerToken = answer
			}
			if flags.Changed("reading") {
				item.Reading = reading
			}
			item, err = problems.Update(cmd.Context(), item)
			if err != nil {
				return err
			}
			if e.quiet {
				return nil
			}
			return e.out.FormatItemDetail(e.app.Stdout, ItemDetail{Item: item})
		},
	}
	cmd.Flags().StringVarP(&prompt, "prompt", "p", "", "new prompt sentence")
	cmd.Flags().StringVarP(&answer, "answer", "a", "", "new answer token")
	cmd.Flags().StringVarP(&reading, "reading", "r", "", "new reading")
	return cmd
}

func newDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete the first row with the given id",
		Long: `Delete the first row with the given id. When the file holds duplicate rows
for the id, only the first is removed. Attempts for the problem are kept;
run doctor to find them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			removed, err := repository.NewProblems(s, e.repoOpts()...).DeleteOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return e.message(fmt.Sprintf("No problem %s; nothing deleted", args[0]))
			}
			return e.message(fmt.Sprintf("Deleted %s", args[0]))
		},
	}
}

func newListCmd(e *env) *cobra.Command {
	var search string
	var top int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			problems := repository.NewProblems(s, e.repoOpts()...)

			var items []quiz.Item
			if search != "" {
				items, err = problems.Search(cmd.Context(), search)
			} else {
				items, err = problems.Load(cmd.Context())
			}
			if err != nil {
				return err
			}
			if top > 0 {
				items = repository.SortByMissCount(items, top)
			}

			if e.quiet {
				for _, it := range items {
					fmt.Fprintln(e.app.Stdout, it.ID)
				}
				return nil
			}
			return e.out.FormatItemList(e.app.Stdout, items)
		},
	}
	cmd.Flags().StringVarP(&search, "search", "s", "", "filter by prompt, answer or reading")
	cmd.Flags().IntVar(&top, "top", 0, "show the N most-missed problems")
	return cmd
}

func newShowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a problem and its attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			item, err := repository.NewProblems(s, e.repoOpts()...).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			attempts, err := repository.NewAttempts(s, e.repoOpts()...).ByItem(cmd.Context(), item.ID)
			if err != nil {
				return err
			}
			return e.out.FormatItemDetail(e.app.Stdout, ItemDetail{Item: item, Attempts: attempts})
		},
	}
}

func newMissCmd(e *env) *cobra.Command {
	var by int
	cmd := &cobra.Command{
		Use:   "miss <id>",
		Short: "Adjust a problem's miss count",
		Long:  "Adjust a problem's miss count by --by (default 1). The result never drops below zero.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.openStore()
			if err != nil {
				return err
			}
			item, err := repository.NewProblems(s, e.repoOpts()...).AdjustMissCount(cmd.Context(), args[0], by)
			if err != nil {
				return err
			}
			return e.message(fmt.Sprintf("%s misses: %d", item.ID, item.MissCount))
		},
	}
	cmd.Flags().IntVar(&by, "by", 1, "amount to add (negative to subtract)")
	return cmd
}
