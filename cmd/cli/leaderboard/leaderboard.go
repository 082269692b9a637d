package leaderboard

import (
	"fmt"
	"github.com/myrjola/decisionverse/cmd/cli/config"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/myrjola/decisionverse/internal/models"
	"github.com/myrjola/decisionverse/internal/rediscache"
	"github.com/myrjola/decisionverse/internal/repositories"
	"github.com/spf13/cobra"
	"text/tabwriter"
	"time"
)

var Group = &cobra.Group{
	ID:    "leaderboard",
	Title: "Leaderboard management",
}

// NewCommand returns the leaderboard command with its subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:     "leaderboard",
		GroupID: Group.ID,
		Short:   "Inspect and reset the leaderboard",
	}
	cmd.AddCommand(newShow(), newClear())
	return cmd
}

func newShow() *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:   "show",
		Short: "Print the best players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return errors.Wrap(err, "get limit flag")
			}
			env, err := config.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			entries, err := repositories.NewLeaderboardRepository(env.DB, env.Logger).Top(ctx, limit)
			if err != nil {
				return errors.Wrap(err, "leaderboard top")
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
			_, _ = fmt.Fprintln(w, "RANK\tNICKNAME\tSCORE\tTIME\tDATE")
			for _, e := range models.Rank(entries) {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%.1fs\t%s\n", e.Rank, e.Nickname, e.Score,
					float64(e.TotalTimeMs)/1000, e.CreatedAt.Format(time.DateTime)) //nolint:mnd // milliseconds
			}
			if err = w.Flush(); err != nil {
				return errors.Wrap(err, "flush table")
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", models.LeaderboardLimit, "number of players to show")
	return cmd
}

func newClear() *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:   "clear",
		Short: "Delete every leaderboard entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			yes, err := cmd.Flags().GetBool("yes")
			if err != nil {
				return errors.Wrap(err, "get yes flag")
			}
			if !yes {
				return errors.New("refusing to clear the leaderboard without --yes")
			}
			env, err := config.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			repo := repositories.NewLeaderboardRepository(env.DB, env.Logger)
			n, err := repo.Clear(ctx)
			if err != nil {
				return errors.Wrap(err, "clear leaderboard")
			}
			if env.Redis != nil {
				rediscache.NewLeaderboard(env.Redis, repo, time.Minute, env.Logger).Invalidate(ctx)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", n)
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "confirm deleting all entries")
	return cmd
}
