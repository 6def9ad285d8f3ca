package main

import (
	"os"

	"github.com/joho/godotenv"

	"livequiz/internal/cli"
)

func main() {
	// Secrets like GEMINI_API_KEY come from the environment; a local .env
	// fills it in during development.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
