package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"wxprobe/cmd"
)

func main() {
	godotenv.Load()

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(os.Getenv("WXPROBE_LOG_LEVEL")); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.With().Caller().Logger()

	cmd.Execute()
}
