// Command cortex indexes a codebase into a hybrid vector/full-text store
// and serves semantic search over it, either as a one-shot CLI query or
// as a stdio MCP server. There is no prior cmd/cortex entrypoint to
// ground this file on; it follows the general package-main + cli.Execute
// convention implied by internal/cli/root.go.
package main

import "github.com/cortex-search/cortex/internal/cli"

func main() {
	cli.Execute()
}
