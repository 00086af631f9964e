package main

import (
	"fmt"
	"os"
	"strings"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFile       = "cyberquestd.pid"
	learnerEnvVar = "CYBERQUEST_LEARNER_ID"
	defaultDaemon = "http://127.0.0.1:7433"
	daemonAddrEnv = "CYBERQUEST_ADDR"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "start":
		err = cmdStart()
	case "stop":
		err = cmdStop()
	case "status":
		err = cmdStatus()
	case "logs":
		err = cmdLogs()
	case "summary":
		err = cmdSummary(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "skills":
		err = cmdSkills(os.Args[2:])
	case "next":
		err = cmdNext(os.Args[2:])
	case "patterns":
		err = cmdPatterns(os.Args[2:])
	case "recommendations", "recs":
		err = cmdRecommendations(os.Args[2:])
	case "achievements":
		err = cmdAchievements(os.Args[2:])
	case "mcp":
		err = cmdMCP()
	case "watch":
		err = cmdWatch(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("cyberquest %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`CyberQuest - Adaptive Cybersecurity Learning Engine

Usage:
  cyberquest <command> [arguments]

Daemon Commands:
  start              Start the CyberQuest daemon
  stop               Stop the CyberQuest daemon
  status             Show daemon status
  logs               View daemon logs

Learner Commands (need -learner or ` + learnerEnvVar + `):
  summary            XP, rank, streak and completion
  stats              Per-level progress
  skills             Latest tier per skill
  next               Suggested next activity
  patterns [-days N] Activity patterns over a trailing window
  recommendations    Active recommendations
  achievements       Awarded achievements

Integration Commands:
  mcp                Start MCP server on stdio (runs the engine in-process)
  watch              Stream progress and achievement events from RabbitMQ

Other:
  help               Show this help message
  version            Show version information

Examples:
  cyberquest start
  cyberquest summary -learner 6f1c...        # Learner summary
  CYBERQUEST_LEARNER_ID=6f1c... cyberquest next
  cyberquest watch -all                      # Events for every learner`)
}

// renderProgressBar creates a visual progress bar
func renderProgressBar(value float64, width int) string {
	filled := int(value * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	empty := width - filled

	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", empty) + "]"
}
