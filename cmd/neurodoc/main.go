package main

import (
	"os"

	"github.com/joho/godotenv"

	"neurodoc/internal/cli"
)

func main() {
	_ = godotenv.Load()
	os.Exit(cli.Execute())
}
