// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the vertext format engine for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/vertext/internal/format"
	"github.com/starford/vertext/internal/models"
	"github.com/starford/vertext/internal/storage"
	"github.com/starford/vertext/internal/wordcount"
)

const formatURI = "vertext://format"

// Server wraps the MCP server with vertext tools.
type Server struct {
	mcp   *server.MCPServer
	store *storage.FS
	codec *format.Codec
}

// ParsedDocument is the JSON shape returned by the parse and read tools.
type ParsedDocument struct {
	Meta       models.Meta `json:"meta"`
	Content    string      `json:"content"`
	HasMeta    bool        `json:"has_meta"`
	Diagnostic string      `json:"diagnostic,omitempty"`
}

// New creates a new MCP server with all vertext tools registered.
// store may be nil, in which case the file tools report an error.
func New(store *storage.FS, codec *format.Codec, version string) *Server {
	if codec == nil {
		codec = format.New()
	}
	s := &Server{store: store, codec: codec}

	s.mcp = server.NewMCPServer(
		"Vertext",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("parse_document",
		mcp.WithDescription("Split stored document text into metadata and body. "+
			"Missing id, title and date are filled with defaults."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Raw document text")),
		mcp.WithString("format", mcp.Description("txt (tagged header) or md (frontmatter, default)")),
	), s.parseDocument)

	s.mcp.AddTool(mcp.NewTool("serialize_document",
		mcp.WithDescription("Encode metadata and body into stored document text. "+
			"Read the contract via get_format_contract or the vertext://format resource first."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Document body")),
		mcp.WithString("meta", mcp.Description(`Metadata as JSON, e.g. {"title":"春曉","date":"2024-03-01"}`)),
		mcp.WithString("format", mcp.Description("txt (tagged header) or md (frontmatter, default)")),
	), s.serializeDocument)

	s.mcp.AddTool(mcp.NewTool("count_words",
		mcp.WithDescription("Count words in a body: each CJK character is one word, "+
			"each Latin/digit run is one word."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Body text without metadata")),
	), s.countWords)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read and parse a stored document. The format follows the file extension."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path relative to the storage root (e.g. poems/spring.txt)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List stored documents under the storage root."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the vertext document format contract."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Document Format Contract",
			mcp.WithResourceDescription("The tagged and frontmatter document encodings."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func formatArg(req mcp.CallToolRequest) (format.Format, error) {
	name := req.GetString("format", "")
	if name == "" {
		return format.Frontmatter, nil
	}
	return format.ParseName(name)
}

func toParsed(res format.Result) ParsedDocument {
	p := ParsedDocument{Meta: res.Meta, Content: res.Content, HasMeta: res.HasMeta}
	p.Meta.WordCount = wordcount.Count(res.Content)
	if res.Diagnostic != nil {
		p.Diagnostic = res.Diagnostic.Error()
	}
	return p
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) parseDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := formatArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(toParsed(s.codec.Parse(text, f)))
}

func (s *Server) serializeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f, err := formatArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var meta models.Meta
	if raw := strings.TrimSpace(req.GetString("meta", "")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid meta: %v", err)), nil
		}
	}
	out, err := s.codec.Serialize(models.Document{Meta: meta, Content: content}, f)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) countWords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d", wordcount.Count(text))), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.store == nil {
		return mcp.NewToolResultError("no storage root configured"), nil
	}
	raw, err := s.store.Read(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", path)), nil
	}
	return jsonResult(toParsed(s.codec.Parse(raw, format.Detect(path, format.Frontmatter))))
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("no storage root configured"), nil
	}
	entries, err := s.store.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getFormatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     FormatContract,
		},
	}, nil
}
