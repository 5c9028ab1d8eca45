package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/inkwell/internal/apperr"
	"github.com/kalambet/inkwell/internal/host"
	"github.com/kalambet/inkwell/internal/settings"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Host     *host.Host
	FilesFor FilesFunc
	History  HistoryReader // optional; search_history is omitted when nil
	Version  string
}

// NewMCPServer creates an MCP server exposing the host commands as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	version := deps.Version
	if version == "" {
		version = "dev"
	}
	s := server.NewMCPServer(
		"inkwell",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("inkwell: editor settings and text file access for the local user."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("load_settings",
			mcp.WithDescription("Return the editor settings as JSON. Defaults are written on first use."),
		),
		mcpLoadSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("save_settings",
			mcp.WithDescription("Replace the editor settings. Every field except resizerRatio is required."),
			mcp.WithString("settings", mcp.Description("Settings document as a JSON object string"), mcp.Required()),
		),
		mcpSaveSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("reset_settings",
			mcp.WithDescription("Overwrite the editor settings with the defaults and return them."),
		),
		mcpResetSettings(deps),
	)

	s.AddTool(
		mcp.NewTool("open_text_file",
			mcp.WithDescription("Read a local text file and return its name and content."),
			mcp.WithString("path", mcp.Description("Absolute path or file:// URI of the file"), mcp.Required()),
		),
		mcpOpenTextFile(deps),
	)

	s.AddTool(
		mcp.NewTool("save_text_file",
			mcp.WithDescription("Write content to a new or existing file chosen by path and return its absolute path."),
			mcp.WithString("path", mcp.Description("Destination path"), mcp.Required()),
			mcp.WithString("content", mcp.Description("Full file content"), mcp.Required()),
		),
		mcpSaveTextFile(deps),
	)

	s.AddTool(
		mcp.NewTool("save_to_existing_file",
			mcp.WithDescription("Overwrite a file at an absolute path with content."),
			mcp.WithString("path", mcp.Description("Absolute destination path"), mcp.Required()),
			mcp.WithString("content", mcp.Description("Full file content"), mcp.Required()),
		),
		mcpSaveToExistingFile(deps),
	)

	if deps.History != nil {
		s.AddTool(
			mcp.NewTool("search_history",
				mcp.WithDescription("Fuzzy-search the paths of recently opened and saved files."),
				mcp.WithString("query", mcp.Description("Search query; empty lists recent files")),
				mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
			),
			mcpSearchHistory(deps),
		)
	}

	s.AddResource(
		mcp.NewResource(
			"inkwell://settings",
			"Editor Settings",
			mcp.WithResourceDescription("Current editor settings as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSettings(deps),
	)

	return s
}

func mcpLoadSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v, err := deps.Host.LoadSettings()
		if err != nil {
			return mcpAppError(err), nil
		}
		return mcpJSON(v), nil
	}
}

func mcpSaveSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("settings")
		if err != nil {
			return mcpError("settings is required"), nil
		}
		v, err := settings.Decode([]byte(raw))
		if err != nil {
			return mcpError(fmt.Sprintf("invalid settings: %v", err)), nil
		}
		if err := deps.Host.SaveSettings(v); err != nil {
			return mcpAppError(err), nil
		}
		return mcpText("Settings saved"), nil
	}
}

func mcpResetSettings(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		v, err := deps.Host.ResetSettings()
		if err != nil {
			return mcpAppError(err), nil
		}
		return mcpJSON(v), nil
	}
}

func mcpOpenTextFile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}
		f, err := deps.Host.WithFiles(deps.FilesFor(path)).OpenTextFile(ctx)
		if err != nil {
			return mcpAppError(err), nil
		}
		return mcpJSON(f), nil
	}
}

func mcpSaveTextFile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		saved, err := deps.Host.WithFiles(deps.FilesFor(path)).SaveTextFile(ctx, content, "")
		if err != nil {
			return mcpAppError(err), nil
		}
		return mcpText(fmt.Sprintf("Saved %s", saved.Path)), nil
	}
}

func mcpSaveToExistingFile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := req.RequireString("path")
		if err != nil {
			return mcpError("path is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil {
			return mcpError("content is required"), nil
		}
		if err := deps.Host.SaveToExistingFile(ctx, path, content); err != nil {
			return mcpAppError(err), nil
		}
		return mcpText(fmt.Sprintf("Saved %s", path)), nil
	}
}

func mcpSearchHistory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		entries, err := deps.History.Search(req.GetString("query", ""), limit)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(entries) == 0 {
			return mcpText("[]"), nil
		}
		return mcpJSON(entries), nil
	}
}

func mcpResourceSettings(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		v, err := deps.Host.LoadSettings()
		if err != nil {
			return nil, fmt.Errorf("failed to load settings: %w", err)
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal settings: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

// mcpAppError renders a host failure. Cancelled is reported as plain text.
func mcpAppError(err error) *mcp.CallToolResult {
	kind := apperr.KindOf(err)
	if kind == apperr.KindCancelled {
		return mcpText("cancelled")
	}
	return mcpError(fmt.Sprintf("%s: %s", kind, apperr.Message(err)))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
