package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
)

const defaultConfig = "./reflect.toml"

type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands = []command{
	{"init-config", "Write a default configuration with a new owner account", runInitConfig},
	{"simulate", "Run a YAML scenario against a fresh ledger and persist the result", runSimulate},
	{"inspect", "Print the persisted ledger state", runInspect},
	{"events", "Export indexed events as CSV or JSONL", runEvents},
	{"serve", "Serve the HTTP gateway over the persisted ledger", runServe},
	{"admin-token", "Issue a bearer token for the gateway admin routes", runAdminToken},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	for _, cmd := range commands {
		if cmd.name != os.Args[1] {
			continue
		}
		if err := cmd.run(os.Args[2:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				os.Exit(0)
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	usage()
	os.Exit(1)
}

func usage() {
	fmt.Println("reflectctl <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, cmd := range commands {
		fmt.Printf("  %-12s %s\n", cmd.name, cmd.summary)
	}
}
