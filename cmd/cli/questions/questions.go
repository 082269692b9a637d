package questions

import (
	"fmt"
	"github.com/myrjola/decisionverse/cmd/cli/config"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/rediscache"
	"github.com/myrjola/decisionverse/internal/repositories"
	"github.com/myrjola/decisionverse/internal/seed"
	"github.com/spf13/cobra"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"
)

var Group = &cobra.Group{
	ID:    "questions",
	Title: "Question management",
}

// NewCommand returns the questions command with its subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:     "questions",
		GroupID: Group.ID,
		Short:   "Manage the question set",
	}
	cmd.AddCommand(newList(), newImport(), newExport(), newSeed())
	return cmd
}

// invalidateCache drops the cached active questions so that the web server sees the change right away.
func invalidateCache(cmd *cobra.Command, env *config.Env, repo *repositories.QuestionRepository) {
	if env.Redis != nil {
		rediscache.NewQuestions(env.Redis, repo, time.Minute, env.Logger).Invalidate(cmd.Context())
	}
}

func newList() *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:   "list",
		Short: "List all questions in play order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := config.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			questions, err := repositories.NewQuestionRepository(env.DB, env.Logger).List(ctx)
			if err != nil {
				return errors.Wrap(err, "list questions")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
			_, _ = fmt.Fprintln(w, "ORDER\tID\tACTIVE\tSUCCESS\tLIMIT\tTEXT")
			for _, q := range questions {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%t\t%.2f\t%ds\t%s\n",
					q.Order, q.ID, q.Active, q.SuccessProb, q.TimeLimitSec, q.Text)
			}
			if err = w.Flush(); err != nil {
				return errors.Wrap(err, "flush table")
			}
			return nil
		},
	}
}

func newImport() *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:   "import <file.yaml>",
		Short: "Import questions from a YAML question set",
		Long: `Imports every question of a YAML question set in one transaction.
The file has the format written by "questions export". Invalid questions abort the import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open question set", slog.String("path", args[0]))
			}
			defer func() {
				_ = f.Close()
			}()
			questions, err := seed.Load(f)
			if err != nil {
				return errors.Wrap(err, "load question set", slog.String("path", args[0]))
			}

			env, err := config.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			repo := repositories.NewQuestionRepository(env.DB, env.Logger)
			if err = repo.Import(ctx, questions, time.Now()); err != nil {
				return errors.Wrap(err, "import questions")
			}
			invalidateCache(cmd, env, repo)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d questions\n", len(questions))
			return nil
		},
	}
}

func newExport() *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:   "export",
		Short: "Write all questions as a YAML question set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := config.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			questions, err := repositories.NewQuestionRepository(env.DB, env.Logger).List(ctx)
			if err != nil {
				return errors.Wrap(err, "list questions")
			}

			out := cmd.OutOrStdout()
			var path string
			if path, err = cmd.Flags().GetString("out"); err != nil {
				return errors.Wrap(err, "get out flag")
			}
			if path != "" {
				var f *os.File
				if f, err = os.Create(path); err != nil {
					return errors.Wrap(err, "create file", slog.String("path", path))
				}
				defer func() {
					_ = f.Close()
				}()
				out = f
			}
			if err = seed.Write(out, questions); err != nil {
				return errors.Wrap(err, "write question set")
			}
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "file to write, standard output when empty")
	return cmd
}

func newSeed() *cobra.Command {
	return &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:   "seed",
		Short: "Import the bundled questions into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			env, err := config.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			repo := repositories.NewQuestionRepository(env.DB, env.Logger)
			n, err := seed.IfEmpty(ctx, repo, time.Now())
			if err != nil {
				return errors.Wrap(err, "seed questions")
			}
			if n == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "questions already exist, nothing imported")
				return nil
			}
			invalidateCache(cmd, env, repo)
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "seeded "+strconv.Itoa(n)+" questions")
			return nil
		},
	}
}
