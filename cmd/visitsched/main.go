package main

import (
	"github.com/joho/godotenv"

	"github.com/example/visit-scheduler/cmd"
)

func init() {
	// Local development convenience; absent .env files are fine.
	_ = godotenv.Load()
}

func main() {
	cmd.Execute()
}
