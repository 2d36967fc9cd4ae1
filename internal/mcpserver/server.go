// Package mcpserver exposes the Retriever's search over the Model
// Context Protocol. It is grounded on the teacher's internal/mcp
// package: server.go's lifecycle shape (construct, Serve on stdio with
// signal-driven graceful shutdown, Close) and tool.go's single-tool
// registration pattern (mcp.NewTool + a handler factory that parses the
// untyped arguments map and returns JSON text), trimmed of the graph,
// files, and pattern tools the teacher also registers — none of those
// subsystems survive into this module's scope.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/cortex-search/cortex/internal/retrieval"
	"github.com/cortex-search/cortex/internal/retriever"
)

// Server wraps a Retriever in an MCP stdio server exposing one "search"
// tool.
type Server struct {
	mcp *server.MCPServer
}

// New constructs a Server bound to codebasePath: every search call is
// scoped to that codebase's collection.
func New(codebasePath string, r *retriever.Retriever) *Server {
	mcpServer := server.NewMCPServer("cortex", "1.0.0", server.WithToolCapabilities(true))

	tool := mcp.NewTool(
		"search",
		mcp.WithDescription("Search the indexed codebase for relevant code chunks using hybrid semantic and keyword search."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language or code search query")),
		mcp.WithNumber("top_k", mcp.Description("Maximum number of results to return (default 5)")),
		mcp.WithNumber("threshold", mcp.Description("Minimum similarity score to include a result (default 0.5)")),
		mcp.WithString("filter_expr", mcp.Description("Optional store filter expression, e.g. relative_path == \"a.go\"")),
		mcp.WithBoolean("prf", mcp.Description("Enable pseudo-relevance-feedback query expansion (default false)")),
	)
	mcpServer.AddTool(tool, searchHandler(codebasePath, r))

	return &Server{mcp: mcpServer}
}

type searchResponse struct {
	Results []resultItem `json:"results"`
	Total   int          `json:"total"`
}

type resultItem struct {
	Content      string  `json:"content"`
	RelativePath string  `json:"relative_path"`
	StartLine    int     `json:"start_line"`
	EndLine      int     `json:"end_line"`
	Language     string  `json:"language"`
	Score        float64 `json:"score"`
}

func searchHandler(codebasePath string, r *retriever.Retriever) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, ok := request.Params.Arguments.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError("invalid arguments format"), nil
		}

		query, ok := args["query"].(string)
		if !ok || query == "" {
			return mcp.NewToolResultError("query parameter is required"), nil
		}

		opts := retriever.DefaultOptions()
		if v, ok := args["top_k"].(float64); ok && v > 0 {
			opts.TopK = int(v)
		}
		if v, ok := args["threshold"].(float64); ok {
			opts.Threshold = v
		}
		if v, ok := args["filter_expr"].(string); ok {
			opts.FilterExpr = v
		}

		usePRF, _ := args["prf"].(bool)

		var searchResults []retrieval.SearchResult
		var err error
		if usePRF {
			searchResults, err = r.SearchWithPRF(ctx, codebasePath, query, opts)
		} else {
			searchResults, err = r.Search(ctx, codebasePath, query, opts)
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		items := toItems(searchResults)

		response := searchResponse{Results: items, Total: len(items)}
		jsonData, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("mcpserver: marshal response: %w", err)
		}
		return mcp.NewToolResultText(string(jsonData)), nil
	}
}

func toItems(results []retrieval.SearchResult) []resultItem {
	items := make([]resultItem, len(results))
	for i, r := range results {
		items[i] = resultItem{
			Content:      r.Content,
			RelativePath: r.RelativePath,
			StartLine:    r.StartLine,
			EndLine:      r.EndLine,
			Language:     r.Language,
			Score:        r.Score,
		}
	}
	return items
}

// Serve starts the MCP server on stdio and blocks until a shutdown
// signal is received or the server errors.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("mcpserver: starting MCP server on stdio")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("mcpserver: serve: %w", err)
		}
	}()

	select {
	case <-sigCh:
		log.Printf("mcpserver: received shutdown signal, stopping")
		cancel()
		return nil
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
