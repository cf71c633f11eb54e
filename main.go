package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/minigames/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("minigames")
		os.Exit(1)
	}
}
