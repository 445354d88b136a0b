package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/luki/smoker/internal/logging"
	"github.com/luki/smoker/internal/monitor"
	"github.com/luki/smoker/internal/viewer"
)

func runMonitor(args []string) {
	fs := flag.NewFlagSet("monitor", flag.ExitOnError)
	url := fs.String("url", "http://localhost:8812", "backend base URL")
	fs.Parse(args)

	// The TUI owns the terminal; route stray log lines away from it.
	logging.Init(logging.Config{Level: "error", Format: "console"})

	p := tea.NewProgram(
		monitor.New(*url),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	dataDir := fs.String("data", "data", "data directory")
	fs.Parse(args)

	logging.Init(logging.Config{Level: "error", Format: "console"})
	viewer.Run(*dataDir)
}
