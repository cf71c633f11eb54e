package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/generate"
	"github.com/robalobadob/minigames/internal/quiz"
)

var generateCmd = &cobra.Command{
	Use:   "generate <quiz|hangman|memory> <topic>",
	Short: "Generate a game payload with the configured model",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		gen, err := newGenerator(cfg)
		if err != nil {
			return err
		}
		difficulty, _ := cmd.Flags().GetString("difficulty")

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		res, err := gen.Game(ctx, generate.Request{
			Kind:       game.Kind(args[0]),
			Topic:      args[1],
			Difficulty: quiz.Difficulty(difficulty),
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%s (%s)\n", res.Meta.Title, res.Meta.Subject)
		fmt.Fprintln(cmd.OutOrStdout(), string(res.Payload))
		return nil
	},
}

func init() {
	generateCmd.Flags().String("difficulty", "", "Quiz difficulty: easy, medium or hard")
}
