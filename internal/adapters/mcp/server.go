package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/blueprint-assistant/internal/core/ports"
)

// Services are the inbound ports exposed as tools.
type Services struct {
	Analyzer ports.DocumentAnalyzer
	Chat     ports.DocumentChat
	Comparer ports.DocumentComparer
	Searcher ports.DocumentSearcher
}

// Tools serves blueprint operations over MCP for one fixed user.
type Tools struct {
	svc    Services
	userID string
	logger *slog.Logger
}

func NewTools(svc Services, userID string, logger *slog.Logger) *Tools {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tools{svc: svc, userID: strings.TrimSpace(userID), logger: logger}
}

func (t *Tools) Server(version string) *server.MCPServer {
	s := server.NewMCPServer("blueprint-assistant", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool("analyze_document",
		mcp.WithDescription("Run structured extraction on an uploaded blueprint and return the analysis JSON."),
		mcp.WithString("documentId", mcp.Required(), mcp.Description("Document id returned by upload.")),
	), t.analyzeDocument)

	s.AddTool(mcp.NewTool("chat_document",
		mcp.WithDescription("Ask a question about one blueprint. Pass conversationId to continue a conversation."),
		mcp.WithString("documentId", mcp.Required(), mcp.Description("Document to discuss.")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Question for the assistant.")),
		mcp.WithString("conversationId", mcp.Description("Existing conversation id.")),
	), t.chatDocument)

	s.AddTool(mcp.NewTool("compare_documents",
		mcp.WithDescription("Compare two analyzed blueprints."),
		mcp.WithString("documentId1", mcp.Required()),
		mcp.WithString("documentId2", mcp.Required()),
	), t.compareDocuments)

	s.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Rank analyzed blueprints against a free-text query."),
		mcp.WithString("query", mcp.Required()),
	), t.searchDocuments)

	return s
}

func (t *Tools) analyzeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	analysis, err := t.svc.Analyzer.Analyze(ctx, t.userID, id)
	return t.result("analyze_document", analysis, err)
}

func (t *Tools) chatDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("documentId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	reply, err := t.svc.Chat.Converse(ctx, t.userID, id, message, req.GetString("conversationId", ""))
	return t.result("chat_document", reply, err)
}

func (t *Tools) compareDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	first, err := req.RequireString("documentId1")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	second, err := req.RequireString("documentId2")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := t.svc.Comparer.Compare(ctx, t.userID, first, second)
	return t.result("compare_documents", result, err)
}

func (t *Tools) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := t.svc.Searcher.Search(ctx, t.userID, query)
	return t.result("search_documents", map[string]any{"results": hits}, err)
}

// result reports use case failures as tool errors so the client sees the
// message instead of a protocol error.
func (t *Tools) result(tool string, payload any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		t.logger.Warn("mcp_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Join(errors.New("marshal tool result"), err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
