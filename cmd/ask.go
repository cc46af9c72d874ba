package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/parleyhq/parley/internal/app"
	"github.com/parleyhq/parley/internal/config"
	"github.com/parleyhq/parley/internal/turn"
)

// askTimeout bounds a single one-shot question.
const askTimeout = 2 * time.Minute

var askDirect bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askDirect, "direct", false, "send the question straight to the model, without tools")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}

	question := strings.Join(args, " ")

	var result turn.Result
	if askDirect {
		result = a.Orchestrator.SendDirect(ctx, question)
	} else {
		result = a.Orchestrator.Send(ctx, question)
	}
	if result.Err != "" {
		return errors.New(result.Err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Response)
	return nil
}
