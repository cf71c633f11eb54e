package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/robalobadob/minigames/internal/game"
	"github.com/robalobadob/minigames/internal/payload"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|->",
	Short: "Check a game payload file",
	Long:  "Validate a quiz, hangman or memory payload against the payload schema and print what it contains.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			raw []byte
			err error
		)
		if args[0] == "-" {
			raw, err = io.ReadAll(cmd.InOrStdin())
		} else {
			raw, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("read payload: %w", err)
		}

		g, err := payload.Parse(raw)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		switch g.Kind {
		case game.KindQuiz:
			fmt.Fprintf(out, "quiz: %d questions", len(g.Questions))
			if g.Difficulty != "" {
				fmt.Fprintf(out, " (%s)", g.Difficulty)
			}
			fmt.Fprintln(out)
		case game.KindHangman:
			n := len(g.Words)
			if g.Word != "" {
				n = 1
			}
			fmt.Fprintf(out, "hangman: %d words, topic %q\n", n, g.Topic)
		case game.KindMemory:
			fmt.Fprintf(out, "memory: %d pairs\n", len(g.Pairs))
		}
		return nil
	},
}
