// mediahub/main.go
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"mediahub/cmd"
)

func main() {
	// a missing .env is fine, the environment and config file still apply
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("mediahub failed")
		os.Exit(1)
	}
}
