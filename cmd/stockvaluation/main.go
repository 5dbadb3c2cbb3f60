package main

import (
	"os"

	"github.com/wonny/stockvaluation/backend/cmd/stockvaluation/commands"
)

// main is the entry point for the valuation service CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/stockvaluation [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
