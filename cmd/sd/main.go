package main

import (
	"os"

	"sealdrive/cmd/sd/commands"

	"github.com/pterm/pterm"
)

func main() {
	if err := commands.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
