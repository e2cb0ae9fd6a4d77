package main

import (
	"os"

	"github.com/CrowderSoup/kanban/cmd"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	app := cmd.NewMainApp(Version)
	if err := cmd.RunMainApp(app, os.Args...); err != nil {
		os.Exit(1)
	}
}
