package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/askql-systems/askql/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "askql",
		Short: "Natural-language question service backed by a SQL warehouse",
		Long: `askql turns free-text questions into structured query plans, compiles
them to SQL, and answers through fingerprint-deduplicated asynchronous jobs.
Equivalent questions share one paid warehouse execution; subscribers follow
job progress over a push stream.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewServeCmd(),
		commands.NewCompileCmd(),
		commands.NewAskCmd(),
		commands.NewStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
