package main

import (
	"log"

	"github.com/Terrance/Davendar/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ davendar failed to start: %v", err)
	}
}
