// MCP Server for entrymap - exposes entry discovery and bundle planning to LLMs
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const version = "1.0.0"

// logger writes to stderr; stdout carries the protocol.
var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "entrymap-mcp"})

func main() {
	server := newServer()

	// Run server on stdio
	if err := server.Run(context.Background(), &mcp.StdioTransport{}); err != nil {
		logger.Error("server error", "err", err)
	}
	sessions.stopAll()
}

func newServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "entrymap",
		Version: version,
	}, nil)

	// Tool: build_entries - Build the entry map of a directory
	mcp.AddTool(server, &mcp.Tool{
		Name:        "build_entries",
		Description: "Build the entry map of a directory: every file ending with the suffix (default .js), keyed by its relative path without the suffix and pointing at its absolute path. This is the entry set a bundler like webpack takes. Use format=tree for a grouped overview.",
	}, handleBuildEntries)

	// Tool: plan_bundles - Pair entries with their output files
	mcp.AddTool(server, &mcp.Tool{
		Name:        "plan_bundles",
		Description: "Plan the bundles for a directory: each entry paired with the output file named by the filename template ([name], [hash], [hash:N]) inside the output directory. Reports output collisions.",
	}, handlePlanBundles)

	// Tool: status - Verify MCP connection
	mcp.AddTool(server, &mcp.Tool{
		Name:        "status",
		Description: "Check entrymap MCP server status. Returns version, working directory and active watches.",
	}, handleStatus)

	// === LIVE WATCH TOOLS ===

	// Tool: start_watch - Start watching a directory
	mcp.AddTool(server, &mcp.Tool{
		Name:        "start_watch",
		Description: "Start watching a directory for entry files being created, removed or renamed. The entry map is rebuilt in the background; use get_updates to see what changed.",
	}, handleStartWatch)

	// Tool: stop_watch - Stop watching a directory
	mcp.AddTool(server, &mcp.Tool{
		Name:        "stop_watch",
		Description: "Stop the watch for a directory.",
	}, handleStopWatch)

	// Tool: get_updates - Changes since the last call
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_updates",
		Description: "Get the entry map changes of a watched directory since the last get_updates call: added and removed entries, failed rebuilds, and the current entry count.",
	}, handleGetUpdates)

	return server
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
		IsError: true,
	}
}
