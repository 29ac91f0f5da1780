package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/shelfscan/models"
)

type apiClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
}

// post sends payload to the listings API and decodes the response. Error
// responses decode too; their detail is in resp.Error.
func (c *apiClient) post(ctx context.Context, path string, payload any) (*models.ListingsResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	client := &http.Client{Timeout: c.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out models.ListingsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	return &out, nil
}

func handleScrapeListings(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		resp, err := c.post(ctx, "/api/v1/listings/scrape", models.ListingsScrapeRequest{
			URL:      url,
			Strategy: request.GetString("strategy", ""),
			Stealth:  request.GetBool("stealth", false),
		})
		return toolResult(resp, err)
	}
}

func handleExtractListings(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		html, err := request.RequireString("html")
		if err != nil {
			return mcp.NewToolResultError("html is required"), nil
		}

		resp, err := c.post(ctx, "/api/v1/listings/extract", models.ListingsExtractRequest{
			HTML:      html,
			SourceURL: request.GetString("source_url", ""),
		})
		return toolResult(resp, err)
	}
}

func toolResult(resp *models.ListingsResponse, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !resp.Success {
		msg := "listing extraction failed"
		if resp.Error != nil {
			msg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
		}
		return mcp.NewToolResultError(msg), nil
	}
	return mcp.NewToolResultText(formatListings(resp)), nil
}

// formatListings renders a response as a markdown report.
func formatListings(resp *models.ListingsResponse) string {
	var b strings.Builder
	if resp.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", resp.Title)
	}
	if resp.FinalURL != "" {
		fmt.Fprintf(&b, "Source: %s\n", resp.FinalURL)
	}
	if s := resp.Summary; s != nil {
		fmt.Fprintf(&b, "Blocks: %d (%d ok, %d partial, %d failed, %d duplicates)\n",
			s.Total, s.Successes, s.Partial, s.Failures, s.Duplicates)
	}

	b.WriteString("\n| # | Name | Price | Rating |\n|---|------|-------|--------|\n")
	for i, r := range resp.Records {
		price, rating := "-", "-"
		if r.Price != nil {
			price = r.Price.Amount.String() + " " + r.Price.Currency
		}
		if r.Rating != nil {
			rating = fmt.Sprintf("%g", *r.Rating)
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", i+1, strings.ReplaceAll(r.Name, "|", `\|`), price, rating)
	}

	if len(resp.Failures) > 0 {
		b.WriteString("\nFailed blocks:\n")
		for _, f := range resp.Failures {
			fmt.Fprintf(&b, "- block %d: %s\n", f.Index, f.Reason)
		}
	}
	return b.String()
}
