// Command shelfscan-mcp exposes the listings API as MCP tools over stdio.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := os.Getenv("SHELFSCAN_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SHELFSCAN_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SHELFSCAN_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"shelfscan",
		"0.1.0",
		server.WithToolCapabilities(false),
	)
	c := &apiClient{baseURL: apiURL, apiKey: apiKey, timeout: 150 * time.Second}

	s.AddTool(mcp.NewTool("scrape_listings",
		mcp.WithDescription("Fetch an e-commerce search results page and extract product listings (name, price, rating). Returns run counts, the deduplicated records and the blocks that failed."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("URL of the search results page"),
		),
		mcp.WithString("strategy",
			mcp.Description("How to acquire the page: 'static' (plain HTTP), 'dynamic' (headless browser) or 'auto' (default, static first then browser)"),
			mcp.Enum("static", "dynamic", "auto"),
		),
		mcp.WithBoolean("stealth",
			mcp.Description("Mask browser automation signals for the dynamic strategy"),
		),
	), handleScrapeListings(c))

	s.AddTool(mcp.NewTool("extract_listings",
		mcp.WithDescription("Extract product listings from search results HTML you already have."),
		mcp.WithString("html",
			mcp.Required(),
			mcp.Description("Raw HTML of the search results page"),
		),
		mcp.WithString("source_url",
			mcp.Description("Where the HTML came from, echoed back for reference"),
		),
	), handleExtractListings(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
