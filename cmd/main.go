package main

import (
	"context"
	"fmt"
	"os"

	"stronghold.gg/cms/internal/interfaces/cli"
	"stronghold.gg/cms/internal/interfaces/di"
)

func main() {
	container, err := di.NewContainer(dataDirFromArgs(os.Args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}
	defer container.Shutdown(context.Background())

	cli.Execute(container.GetCLIContainer())
}

// dataDirFromArgs resolves --data-dir ahead of cobra parsing; the container
// must exist before the command tree does.
func dataDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--data-dir" && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := cutFlag(arg, "--data-dir="); ok {
			return v
		}
	}
	return ""
}

func cutFlag(arg, prefix string) (string, bool) {
	if len(arg) > len(prefix) && arg[:len(prefix)] == prefix {
		return arg[len(prefix):], true
	}
	return "", false
}
