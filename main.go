package main

import (
	"github.com/joho/godotenv"

	"jmorse87/carscout/cmd"
	"jmorse87/carscout/logger"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()

	cmd.Execute()
}
