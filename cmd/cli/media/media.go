package media

import (
	"context"
	"fmt"
	"github.com/myrjola/decisionverse/cmd/cli/config"
	"github.com/myrjola/decisionverse/internal/ai"
	"github.com/myrjola/decisionverse/internal/errors"
	"github.com/spf13/cobra"
	"image/png"
	"log/slog"
	"os"
	"strings"
	"time"
)

var Group = &cobra.Group{
	ID:    "media",
	Title: "Outcome media",
}

// imageTimeout bounds one DALL·E request.
const imageTimeout = 2 * time.Minute

// NewCommand returns the media command with its subcommands.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:     "media",
		GroupID: Group.ID,
		Short:   "Create illustrations for question outcomes",
	}
	cmd.AddCommand(newGenerate())
	return cmd
}

func newGenerate() *cobra.Command {
	cmd := &cobra.Command{ //nolint:exhaustruct // defaults for the rest
		Use:   "gen [prompt]",
		Short: "Generate an outcome image",
		Long: `Generates an outcome image with DALL·E and writes it as PNG.
Host the file and use its URL as the success or failure media of a question.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.AIConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.APIKey == "" {
				return errors.New("an OpenAI API key is required, set --openai-api-key or DECISIONVERSE_OPENAI_API_KEY")
			}
			logger, err := config.Logger(cmd)
			if err != nil {
				return err
			}
			outPath, err := cmd.Flags().GetString("out")
			if err != nil {
				return errors.Wrap(err, "get out flag")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), imageTimeout)
			defer cancel()
			img, err := ai.NewClient(cfg, logger).GenerateImage(ctx, strings.Join(args, " "))
			if err != nil {
				return errors.Wrap(err, "generate image")
			}

			file, err := os.Create(outPath)
			if err != nil {
				return errors.Wrap(err, "create file", slog.String("path", outPath))
			}
			defer func(file *os.File) {
				_ = file.Close()
			}(file)
			if err = png.Encode(file, img); err != nil {
				return errors.Wrap(err, "encode png")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "wrote "+outPath)
			return nil
		},
	}
	cmd.Flags().String("out", "./out.png", "path to generated image file")
	return cmd
}
