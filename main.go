package main

import (
	"couple-notes-backend/cmd"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cmd.Run()
}
