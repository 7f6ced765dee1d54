package main

import (
	"fmt"
	"os"
	"strings"
)

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "register":
		err = commandRegister(args)
	case "login":
		err = commandLogin(args)
	case "whoami":
		err = commandWhoami(args)
	case "list", "ls":
		err = commandList(args)
	case "add":
		err = commandAdd(args)
	case "edit":
		err = commandEdit(args)
	case "done":
		err = commandSetCompleted(args, true)
	case "undone":
		err = commandSetCompleted(args, false)
	case "rm":
		err = commandRemove(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("todo CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	todo register --email user@example.com [--password secret] [--api http://localhost:5001/api]
	todo login --email user@example.com [--password secret] [--api http://localhost:5001/api]
	todo whoami
	todo list
	todo add --title "Buy milk" [--description text] [--due 2025-03-01]
	todo edit <id> [--title text] [--description text] [--due 2025-03-01] [--clear-due] [--clear-description]
	todo done <id>
	todo undone <id>
	todo rm <id>
	todo version

Task ids may be abbreviated to any unique prefix.
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
