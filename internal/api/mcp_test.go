package api

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/inkwell/internal/dialog"
	"github.com/kalambet/inkwell/internal/fileaccess"
	"github.com/kalambet/inkwell/internal/fsys"
	"github.com/kalambet/inkwell/internal/history"
	"github.com/kalambet/inkwell/internal/host"
	"github.com/kalambet/inkwell/internal/offload"
	"github.com/kalambet/inkwell/internal/settings"
)

func newTestMCPDeps(t *testing.T) MCPDeps {
	t.Helper()
	hist, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("opening history: %v", err)
	}
	t.Cleanup(func() { hist.Close() })

	pool := offload.New(2)
	t.Cleanup(pool.Close)
	filesFor := func(sel string) host.Files {
		return fileaccess.New(dialog.Select(sel), fsys.Default, pool)
	}
	store := settings.NewStore(settings.WithDir(filepath.Join(t.TempDir(), "appdata")))

	return MCPDeps{
		Host:     host.New(store, filesFor(""), host.WithRecorder(hist)),
		FilesFor: filesFor,
		History:  hist,
	}
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

func TestMCPTool_LoadSettings(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpLoadSettings(deps), "load_settings", nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	got, err := settings.Decode([]byte(toolText(t, result)))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if !settings.Equal(got, settings.Defaults()) {
		t.Errorf("settings = %+v", got)
	}
}

func TestMCPTool_SaveSettings(t *testing.T) {
	deps := newTestMCPDeps(t)

	v := settings.Defaults()
	v.WordWrapColumn = 100
	data, _ := settings.Encode(v)
	result := callTool(t, mcpSaveSettings(deps), "save_settings", map[string]interface{}{"settings": string(data)})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	got, err := deps.Host.LoadSettings()
	if err != nil || got.WordWrapColumn != 100 {
		t.Errorf("LoadSettings() = %+v, %v", got, err)
	}

	result = callTool(t, mcpSaveSettings(deps), "save_settings", map[string]interface{}{"settings": `{"fontSize":1}`})
	if !result.IsError {
		t.Error("expected error for incomplete settings")
	}

	result = callTool(t, mcpSaveSettings(deps), "save_settings", nil)
	if !result.IsError {
		t.Error("expected error for missing argument")
	}
}

func TestMCPTool_ResetSettings(t *testing.T) {
	deps := newTestMCPDeps(t)
	result := callTool(t, mcpResetSettings(deps), "reset_settings", nil)
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), `"fontSize":16`) {
		t.Errorf("result = %s", toolText(t, result))
	}
}

func TestMCPTool_OpenAndSave(t *testing.T) {
	deps := newTestMCPDeps(t)
	path := filepath.Join(t.TempDir(), "doc.md")

	result := callTool(t, mcpSaveTextFile(deps), "save_text_file", map[string]interface{}{"path": path, "content": "one"})
	if result.IsError {
		t.Fatalf("save_text_file: %s", toolText(t, result))
	}

	result = callTool(t, mcpSaveToExistingFile(deps), "save_to_existing_file", map[string]interface{}{"path": path, "content": "two"})
	if result.IsError {
		t.Fatalf("save_to_existing_file: %s", toolText(t, result))
	}

	result = callTool(t, mcpOpenTextFile(deps), "open_text_file", map[string]interface{}{"path": path})
	if result.IsError {
		t.Fatalf("open_text_file: %s", toolText(t, result))
	}
	var opened fileaccess.OpenedFile
	if err := json.Unmarshal([]byte(toolText(t, result)), &opened); err != nil {
		t.Fatal(err)
	}
	if opened.Content != "two" || opened.Name != "doc.md" {
		t.Errorf("opened = %+v", opened)
	}
}

func TestMCPTool_OpenErrors(t *testing.T) {
	deps := newTestMCPDeps(t)

	result := callTool(t, mcpOpenTextFile(deps), "open_text_file", map[string]interface{}{"path": "content://x/1"})
	if !result.IsError || !strings.HasPrefix(toolText(t, result), "unsupported_location") {
		t.Errorf("abstract path result = %+v", result)
	}

	result = callTool(t, mcpOpenTextFile(deps), "open_text_file", map[string]interface{}{"path": ""})
	if result.IsError || toolText(t, result) != "cancelled" {
		t.Errorf("empty path result = %s", toolText(t, result))
	}
}

func TestMCPTool_SearchHistory(t *testing.T) {
	deps := newTestMCPDeps(t)
	path := filepath.Join(t.TempDir(), "journal.txt")
	os.WriteFile(path, []byte("day one"), 0o644)
	callTool(t, mcpOpenTextFile(deps), "open_text_file", map[string]interface{}{"path": path})

	result := callTool(t, mcpSearchHistory(deps), "search_history", map[string]interface{}{"query": "journal"})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.Contains(toolText(t, result), "journal.txt") {
		t.Errorf("result = %s", toolText(t, result))
	}

	result = callTool(t, mcpSearchHistory(deps), "search_history", map[string]interface{}{"query": "qqqq"})
	if toolText(t, result) != "[]" {
		t.Errorf("no-match result = %s", toolText(t, result))
	}
}

func TestMCPResource_Settings(t *testing.T) {
	deps := newTestMCPDeps(t)
	handler := mcpResourceSettings(deps)

	contents, err := handler(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: "inkwell://settings"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.MIMEType != "application/json" || !strings.Contains(tc.Text, "fontFamily") {
		t.Errorf("resource = %+v", tc)
	}
}

func TestNewMCPServer_Builds(t *testing.T) {
	deps := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}
