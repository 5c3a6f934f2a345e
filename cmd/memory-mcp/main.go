// Command memory-mcp runs the bundled key-value MCP server over stdio.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/server"

	"github.com/isocode-ai/isocode/pkg/mcpserver/memorykv"
)

func main() {
	path := os.Getenv("MEMORY_MCP_FILE")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot determine home directory:", err)
			os.Exit(1)
		}
		path = filepath.Join(home, ".isocode", "memory-mcp.json")
	}

	if err := server.ServeStdio(memorykv.NewServer(path)); err != nil {
		fmt.Fprintln(os.Stderr, "server error:", err)
		os.Exit(1)
	}
}
