// Package cli wires cortex's cobra commands together: index, search,
// cache, and mcp. Grounded on the teacher's internal/cli/root.go scaffold
// (a bare rootCmd plus persistent flags and viper-backed config
// discovery), retargeted to load configuration through
// internal/config.Loader per invocation instead of a package-level
// viper singleton.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var quiet bool

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "cortex",
	Short: "Cortex - code-aware semantic search",
	Long:  "Cortex indexes a codebase into a hybrid vector/full-text store and serves semantic search over it, optionally through an MCP server.",
}

// Execute adds all child commands to the root command and runs it. This
// is called by cmd/cortex's main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
}

// pathArg returns args[0] if present, else ".", matching spec §10's
// `cortex <command> <path>` shape with path optional (defaults to cwd).
func pathArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
