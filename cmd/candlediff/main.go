package main

import (
	"github.com/joho/godotenv"

	"candle-diff/internal/cli"
)

func main() {
	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	cli.Execute()
}
