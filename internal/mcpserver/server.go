// Package mcpserver exposes the health knowledge base to LLM agents as MCP
// tools over stdio. It can read the corpus, ask the assistant, search the web
// and extract drafts, but it cannot import: importing stays with a human reviewer.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/healthlib/internal/draftfile"
	"github.com/starford/healthlib/internal/models"
	"github.com/starford/healthlib/internal/transport"
)

// Server wraps the MCP server with health knowledge tools.
type Server struct {
	mcp     *server.MCPServer
	backend transport.Backend
	lang    models.Lang
	logger  *slog.Logger
}

// New creates an MCP server answering in lang unless a tool call overrides it.
func New(backend transport.Backend, lang models.Lang, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{backend: backend, lang: lang, logger: logger}

	s.mcp = server.NewMCPServer(
		"HealthLib",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	langOpt := mcp.WithString("lang", mcp.Description("Response language: zh or en"))

	s.mcp.AddTool(mcp.NewTool("list_categories",
		mcp.WithDescription("List knowledge categories with item counts."),
		langOpt,
	), s.listCategories)

	s.mcp.AddTool(mcp.NewTool("search_knowledge",
		mcp.WithDescription("Rank knowledge items against a free-text query. "+
			"Without a category the search spans the whole corpus."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query")),
		mcp.WithString("category", mcp.Description("Optional category id: general, heart_rate, hrv, sleep, exercise, stress")),
		langOpt,
	), s.searchKnowledge)

	s.mcp.AddTool(mcp.NewTool("browse_knowledge",
		mcp.WithDescription("List knowledge items by category and tier without ranking."),
		mcp.WithString("category", mcp.Description("Optional category id")),
		mcp.WithNumber("tier", mcp.Description("Optional tier 1-4 (1 = official guideline, 4 = general reference)")),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1")),
		langOpt,
	), s.browseKnowledge)

	s.mcp.AddTool(mcp.NewTool("get_knowledge_item",
		mcp.WithDescription("Read the full content of a knowledge item."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Item id as returned by search or browse")),
		langOpt,
	), s.getKnowledgeItem)

	s.mcp.AddTool(mcp.NewTool("ask_assistant",
		mcp.WithDescription("Ask the health assistant a question. The answer cites its sources."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Question to ask")),
		mcp.WithString("conversation_id", mcp.Description("Conversation to continue, from a previous answer")),
	), s.askAssistant)

	s.mcp.AddTool(mcp.NewTool("list_suggestions",
		mcp.WithDescription("List starter questions for the assistant."),
	), s.listSuggestions)

	s.mcp.AddTool(mcp.NewTool("web_search",
		mcp.WithDescription("Search the web for health resources that could be added to the corpus."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query, at least 2 characters")),
	), s.webSearch)

	s.mcp.AddTool(mcp.NewTool("preview_content",
		mcp.WithDescription("Fetch a web page and extract it into a draft document. "+
			"The draft is returned in the draft format (see get_draft_contract); it is NOT imported."),
		mcp.WithString("url", mcp.Required(), mcp.Description("Page URL")),
	), s.previewContent)

	s.mcp.AddTool(mcp.NewTool("get_draft_contract",
		mcp.WithDescription("Returns the draft document format and the tier and category definitions."),
	), s.getDraftContract)

	s.mcp.AddResource(
		mcp.NewResource(DraftFormatURI, "Draft Format Contract",
			mcp.WithResourceDescription("Markdown draft format used for documents awaiting review."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDraftFormatResource,
	)

	return s
}

// Serve speaks MCP over in/out (normally stdin/stdout) until ctx is cancelled
// or the input is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp: serving on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) langArg(req mcp.CallToolRequest) (models.Lang, error) {
	raw := req.GetString("lang", "")
	if raw == "" {
		return s.lang, nil
	}
	return models.ParseLang(raw)
}

func (s *Server) categoryArg(req mcp.CallToolRequest) (*models.CategoryID, error) {
	raw := req.GetString("category", "")
	if raw == "" {
		return nil, nil
	}
	id, err := models.ParseCategoryID(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func (s *Server) listCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lang, err := s.langArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cats, err := s.backend.ListCategories(ctx, lang)
	if err != nil {
		return s.failed("list_categories", err), nil
	}
	return jsonResult(cats), nil
}

func (s *Server) searchKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	category, err := s.categoryArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lang, err := s.langArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.backend.SearchKnowledge(ctx, query, category, lang)
	if err != nil {
		return s.failed("search_knowledge", err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) browseKnowledge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := s.categoryArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lang, err := s.langArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	params := transport.BrowseParams{
		Category: category,
		Page:     req.GetInt("page", transport.DefaultPage),
		PageSize: transport.DefaultPageSize,
	}
	if n := req.GetInt("tier", 0); n != 0 {
		tier, err := models.TierFromInt(n)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		params.Tier = &tier
	}
	results, err := s.backend.BrowseKnowledge(ctx, params, lang)
	if err != nil {
		return s.failed("browse_knowledge", err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getKnowledgeItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lang, err := s.langArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	item, err := s.backend.GetKnowledgeItem(ctx, id, lang)
	if err != nil {
		return s.failed("get_knowledge_item", err), nil
	}
	return jsonResult(item), nil
}

func (s *Server) askAssistant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	conversationID := req.GetString("conversation_id", "")
	history := []models.ChatMessage{{Role: models.RoleUser, Content: message}}
	resp, err := s.backend.SendChatMessage(ctx, message, conversationID, history)
	if err != nil {
		return s.failed("ask_assistant", err), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) listSuggestions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.backend.ListChatSuggestions(ctx)
	if err != nil {
		return s.failed("list_suggestions", err), nil
	}
	return jsonResult(list), nil
}

func (s *Server) webSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.backend.WebSearch(ctx, query)
	if err != nil {
		return s.failed("web_search", err), nil
	}
	return jsonResult(results), nil
}

func (s *Server) previewContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	draft, err := s.backend.PreviewContent(ctx, pageURL)
	if err != nil {
		return s.failed("preview_content", err), nil
	}
	if draft.URL == "" {
		draft.URL = pageURL
	}
	doc, err := draftfile.Render(draft)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(doc)), nil
}

func (s *Server) getDraftContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DraftFormatContract), nil
}

func (s *Server) readDraftFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DraftFormatURI,
			MIMEType: "text/markdown",
			Text:     DraftFormatContract,
		},
	}, nil
}

// failed logs a backend error and reports it to the agent.
func (s *Server) failed(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("mcp: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}
