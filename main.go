// smoker is a barbecue telemetry backend and terminal client in one
// binary:
//
//	smoker serve     run the backend (websocket relay, rules, storage)
//	smoker monitor   live chart TUI fed by a running backend
//	smoker view      browse stored sessions offline
//	smoker simulate  feed a backend with synthetic device events
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "monitor":
		runMonitor(os.Args[2:])
	case "view":
		runView(os.Args[2:])
	case "simulate":
		runSimulate(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: smoker <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Run the backend server")
	fmt.Println("  monitor   Live temperature chart for a running backend")
	fmt.Println("  view      Browse stored smoke sessions")
	fmt.Println("  simulate  Emit synthetic device events at a backend")
	fmt.Println()
	fmt.Println("Run 'smoker <command> -h' for command flags.")
}
