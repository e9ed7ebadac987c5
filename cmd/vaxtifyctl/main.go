// Command vaxtifyctl is the inspection and permit-control CLI for
// vaxtifyd: a thin dbus client with no daemon-side dependencies, built
// directly on flag rather than a subcommand framework (see DESIGN.md
// for why spf13/cobra was left unwired).
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"

	"github.com/vaxtify/vaxtifyd/internal/ipcbus/client"
)

const defaultBusName = "dev.vaxtify.Daemon"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	busName := os.Getenv("VAXTIFY_BUS_NAME")
	if busName == "" {
		busName = defaultBusName
	}

	var err error
	switch os.Args[1] {
	case "status":
		err = runStatus(busName)
	case "permit":
		err = runPermit(busName, os.Args[2:])
	case "reload":
		err = runReload(busName)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("vaxtifyctl: %v", err))
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: vaxtifyctl status | permit start <name> | permit end <name> | reload")
}

func runStatus(busName string) error {
	p := tea.NewProgram(newStatusModel(busName))
	_, err := p.Run()
	return err
}

func runPermit(busName string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: vaxtifyctl permit start|end <name>")
	}
	action, name := args[0], args[1]

	c, err := client.Dial(busName)
	if err != nil {
		return fmt.Errorf("dial vaxtifyd: %w", err)
	}
	defer c.Close()

	switch action {
	case "start":
		if err := c.PermitStart(name); err != nil {
			return err
		}
	case "end":
		if err := c.PermitEnd(name); err != nil {
			return err
		}
	default:
		return fmt.Errorf("usage: vaxtifyctl permit start|end <name>")
	}

	fmt.Println(color.GreenString("ok"))
	return nil
}

func runReload(busName string) error {
	c, err := client.Dial(busName)
	if err != nil {
		return fmt.Errorf("dial vaxtifyd: %w", err)
	}
	defer c.Close()

	if err := c.ServiceReload(); err != nil {
		return err
	}
	fmt.Println(color.GreenString("ok"))
	return nil
}
