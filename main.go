package main

import (
	"log"

	_ "signal-router/docs"
	"signal-router/internal/app"
)

// @title Signal Router API
// @version 1.0
// @description Webhook signal relay with rule-based routing and per-target delivery accounting.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
