package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/askql-systems/askql/internal/fingerprint"
	"github.com/askql-systems/askql/internal/sqlgen"
	"github.com/askql-systems/askql/pkg/types"
)

// NewCompileCmd creates the compile command.
func NewCompileCmd() *cobra.Command {
	var showFingerprint bool

	cmd := &cobra.Command{
		Use:   "compile <plan.json>",
		Short: "Compile a query plan file to SQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(args[0], showFingerprint)
		},
	}
	cmd.Flags().BoolVar(&showFingerprint, "fingerprint", false, "also print the SQL fingerprint")
	return cmd
}

func runCompile(path string, showFingerprint bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading plan: %w", err)
	}

	var root types.RootPlan
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parsing plan: %w", err)
	}

	sql, err := sqlgen.Compile(&root)
	if err != nil {
		color.Red("compilation failed: %v", err)
		return err
	}

	fmt.Println(sql)
	if showFingerprint {
		color.Cyan("fingerprint: %s", fingerprint.SQL(sql))
	}
	return nil
}
