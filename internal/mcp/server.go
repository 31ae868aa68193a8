package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mfenderov/hvlinks/internal/pipeline"
	"github.com/mfenderov/hvlinks/internal/scraper"
	"github.com/mfenderov/hvlinks/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server exposes the scrape and query operations as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	pipeline  *pipeline.Pipeline
}

// NewServer creates a new MCP server with link tools.
func NewServer(config Config, p *pipeline.Pipeline) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		pipeline:  p,
	}

	scrapeTool := mcp.NewTool("scrape_links",
		mcp.WithDescription("Fetch a web page, score every link on it against the keywords, and store the results. Returns the number of links processed."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute URL of the page to scrape"),
		),
		mcp.WithArray("keywords",
			mcp.Description("Keywords to match against each link"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("use_gpt",
			mcp.Description("Reserved; scraping always scores lexically"),
		),
	)
	mcpServer.AddTool(scrapeTool, s.scrapeHandler)

	queryTool := mcp.NewTool("query_links",
		mcp.WithDescription("List stored links with a relevance score at or above min_score, optionally restricted to a keyword. With use_gpt, scores are re-estimated by a language model from the linked page content."),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum relevance score between 0 and 1 (default: 0)"),
		),
		mcp.WithString("keyword",
			mcp.Description("Only return links whose stored keywords contain this text"),
		),
		mcp.WithBoolean("use_gpt",
			mcp.Description("Re-score each result with the language model (default: false)"),
		),
	)
	mcpServer.AddTool(queryTool, s.queryHandler)

	return s
}

// scrapeHandler handles the scrape_links tool call.
func (s *Server) scrapeHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	result, err := s.pipeline.Scrape(ctx, models.ScrapeRequest{
		URL:      url,
		Keywords: req.GetStringSlice("keywords", nil),
		UseGPT:   req.GetBool("use_gpt", false),
	})
	if err != nil {
		var fetchErr *scraper.FetchError
		if errors.As(err, &fetchErr) {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to fetch URL: %v", fetchErr)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("scrape failed: %v", err)), nil
	}

	return jsonResult(result)
}

// queryHandler handles the query_links tool call.
func (s *Server) queryHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	links, err := s.pipeline.Query(ctx, models.LinkQuery{
		MinScore: req.GetFloat("min_score", 0),
		Keyword:  req.GetString("keyword", ""),
		UseGPT:   req.GetBool("use_gpt", false),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}

	return jsonResult(links)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
