package main

import (
	"log"
	"os"

	"github.com/MrSnakeDoc/ollamon/internal/app"
)

func main() {
	if err := app.New(os.Args[1:]).Run(); err != nil {
		log.Fatalf("❌ ollamon failed: %v", err)
	}
}
