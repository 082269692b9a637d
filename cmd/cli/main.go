package main

import (
	"context"
	"fmt"
	"github.com/joho/godotenv"
	"github.com/myrjola/decisionverse/cmd/cli/config"
	"github.com/myrjola/decisionverse/cmd/cli/leaderboard"
	"github.com/myrjola/decisionverse/cmd/cli/media"
	"github.com/myrjola/decisionverse/cmd/cli/questions"
	"github.com/spf13/cobra"
	"os"
)

func newRootCmd(lookupEnv func(string) (string, bool)) *cobra.Command {
	rootCmd := &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:           "decisionverse-cli",
		Long:          `Command line utilities for operating DecisionVerse.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	config.AddFlags(rootCmd, lookupEnv)
	rootCmd.AddGroup(questions.Group, leaderboard.Group, media.Group)
	rootCmd.AddCommand(questions.NewCommand(), leaderboard.NewCommand(), media.NewCommand())
	return rootCmd
}

func main() {
	// A missing .env file is fine, the flags and environment may be set otherwise.
	_ = godotenv.Load()

	if err := newRootCmd(os.LookupEnv).ExecuteContext(context.Background()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
