// Package mcp exposes news search and question answering as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mfenderov/samanta/internal/rag"
	"github.com/mfenderov/samanta/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Searcher returns the chunks most relevant to a query, best first.
type Searcher interface {
	Retrieve(ctx context.Context, query string) ([]models.Chunk, error)
}

// Asker answers a single question.
type Asker interface {
	Ask(ctx context.Context, req rag.Request) (*rag.Answer, error)
}

// Extractor fetches an article page.
type Extractor interface {
	Extract(ctx context.Context, url string) (*models.Article, error)
}

// Server wraps the MCP server with the retrieval pipeline.
type Server struct {
	mcpServer *server.MCPServer
	searcher  Searcher
	asker     Asker
	extractor Extractor
}

// NewServer creates a new MCP server with search_news and ask_news tools.
// A nil extractor disables the url argument of ask_news.
func NewServer(config Config, searcher Searcher, asker Asker, extractor Extractor) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		searcher:  searcher,
		asker:     asker,
		extractor: extractor,
	}

	searchTool := mcp.NewTool("search_news",
		mcp.WithDescription("Search the indexed news articles. Returns the most relevant text chunks as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query, in any language"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of chunks to return (default: all retrieved)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	askTool := mcp.NewTool("ask_news",
		mcp.WithDescription("Ask a question about the indexed news. Answers in Spanish using only retrieved context."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("Question to answer"),
		),
		mcp.WithString("url",
			mcp.Description("Optional article URL to include with the question"),
		),
	)
	mcpServer.AddTool(askTool, s.askHandler)

	return s
}

// searchHandler handles the search_news tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	chunks, err := s.searcher.Retrieve(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if limit := req.GetInt("limit", 0); limit > 0 && limit < len(chunks) {
		chunks = chunks[:limit]
	}
	if chunks == nil {
		chunks = []models.Chunk{}
	}

	result, err := json.Marshal(chunks)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// askHandler handles the ask_news tool call. Each call is a fresh,
// history-less conversation.
func (s *Server) askHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := req.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required"), nil
	}

	var article *models.Article
	if url := req.GetString("url", ""); url != "" {
		if s.extractor == nil {
			return mcp.NewToolResultError("url argument is not supported by this server"), nil
		}
		article, err = s.extractor.Extract(ctx, url)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to extract article: %v", err)), nil
		}
	}

	answer, err := s.asker.Ask(ctx, rag.Request{Question: question, Article: article})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	return mcp.NewToolResultText(answer.Text), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
