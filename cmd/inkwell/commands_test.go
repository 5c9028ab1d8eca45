package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kalambet/inkwell/internal/apperr"
	"github.com/kalambet/inkwell/internal/config"
	"github.com/kalambet/inkwell/internal/events"
	"github.com/kalambet/inkwell/internal/settings"
)

// setupEnv points every inkwell directory into a temp dir.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("INKWELL_HOME", filepath.Join(dir, "home"))
	t.Setenv("INKWELL_CONFIG_DIR", filepath.Join(dir, "config"))
	t.Setenv("INKWELL_HISTORY_DATA_DIR", filepath.Join(dir, "history"))
	return dir
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs the root command and returns what it wrote to stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
		resetFlags(rootCmd)
	}()
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSettingsCommands(t *testing.T) {
	dir := setupEnv(t)

	out, err := execute(t, "", "settings", "get", "fontSize")
	if err != nil {
		t.Fatalf("settings get: %v", err)
	}
	if out != "16\n" {
		t.Errorf("fontSize = %q, want %q", out, "16\n")
	}
	if _, err := os.Stat(filepath.Join(dir, "home", settings.FileName)); err != nil {
		t.Errorf("defaults were not written: %v", err)
	}

	if _, err := execute(t, "", "settings", "set", "autoSave.interval", "30"); err != nil {
		t.Fatalf("settings set: %v", err)
	}
	out, err = execute(t, "", "settings", "get", "autoSave.interval")
	if err != nil {
		t.Fatalf("settings get: %v", err)
	}
	if out != "30\n" {
		t.Errorf("autoSave.interval = %q, want %q", out, "30\n")
	}

	out, err = execute(t, "", "settings", "get", "backgroundColor")
	if err != nil {
		t.Fatal(err)
	}
	if out != "#ffffff\n" {
		t.Errorf("backgroundColor = %q, want unquoted string", out)
	}

	if _, err := execute(t, "", "settings", "get", "nope"); err == nil {
		t.Error("expected error for unknown path")
	}

	out, err = execute(t, "", "settings", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != filepath.Join(dir, "home", settings.FileName) {
		t.Errorf("settings path = %q", out)
	}
}

func TestSettingsReset_RecoversCorruptDocument(t *testing.T) {
	dir := setupEnv(t)
	path := filepath.Join(dir, "home", settings.FileName)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, "", "settings", "show")
	if apperr.KindOf(err) != apperr.KindParseFailed {
		t.Fatalf("settings show error = %v, want ParseFailed", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{not json" {
		t.Errorf("corrupt document was modified: %q", data)
	}

	if _, err := execute(t, "", "settings", "reset"); err != nil {
		t.Fatalf("settings reset: %v", err)
	}
	out, err := execute(t, "", "settings", "show")
	if err != nil {
		t.Fatalf("settings show after reset: %v", err)
	}
	got, err := settings.Decode([]byte(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !settings.Equal(got, settings.Defaults()) {
		t.Errorf("settings after reset = %+v, want defaults", got)
	}
}

func TestApplySetting(t *testing.T) {
	base := settings.Defaults()

	cases := []struct {
		key, value string
		check      func(settings.EditorSettings) bool
	}{
		{"fontSize", "18", func(s settings.EditorSettings) bool { return s.FontSize == 18 }},
		{"autoSave.enabled", "false", func(s settings.EditorSettings) bool { return !s.AutoSave.Enabled }},
		{"backgroundColor", "123", func(s settings.EditorSettings) bool { return s.BackgroundColor == "123" }},
		{"fontFamily", settings.FontMincho, func(s settings.EditorSettings) bool { return s.FontFamily == settings.FontMincho }},
		{"resizerRatio", "null", func(s settings.EditorSettings) bool { return s.ResizerRatio == nil }},
		{"resizerRatio", "0", func(s settings.EditorSettings) bool { return s.ResizerRatio != nil && *s.ResizerRatio == 0 }},
	}
	for _, tc := range cases {
		got, err := applySetting(base, tc.key, tc.value)
		if err != nil {
			t.Errorf("applySetting(%s, %s): %v", tc.key, tc.value, err)
			continue
		}
		if !tc.check(got) {
			t.Errorf("applySetting(%s, %s) = %+v", tc.key, tc.value, got)
		}
	}

	if base.FontSize != 16 {
		t.Errorf("applySetting modified its input: FontSize = %d", base.FontSize)
	}
}

func TestApplySetting_Rejects(t *testing.T) {
	cases := []struct {
		key, value, want string
	}{
		{"unknown", "1", "unknown setting"},
		{"font*", "1", "invalid setting key"},
		{"autoSave..interval", "1", "invalid setting key"},
		{"fontSize", "big", "must be JSON"},
		{"fontSize", "-1", "invalid value"},
		{"autoSave.enabled", "null", "invalid value"},
	}
	for _, tc := range cases {
		_, err := applySetting(settings.Defaults(), tc.key, tc.value)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("applySetting(%s, %s) error = %v, want it to mention %q", tc.key, tc.value, err, tc.want)
		}
	}
}

func TestFileCommands_SaveOpenAndHistory(t *testing.T) {
	dir := setupEnv(t)
	target := filepath.Join(dir, "docs", "notes.md")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "# Title\n", "file", "save-as", target)
	if err != nil {
		t.Fatalf("file save-as: %v", err)
	}
	if strings.TrimSpace(out) != target {
		t.Errorf("save-as printed %q, want %q", out, target)
	}

	src := filepath.Join(dir, "src.txt")
	if err := os.WriteFile(src, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "file", "write", target, "--from", src); err != nil {
		t.Fatalf("file write: %v", err)
	}

	out, err = execute(t, "", "file", "open", target)
	if err != nil {
		t.Fatalf("file open: %v", err)
	}
	if out != "second" {
		t.Errorf("open printed %q, want %q", out, "second")
	}

	out, err = execute(t, "", "history", "list", "--path", target)
	if err != nil {
		t.Fatalf("history list: %v", err)
	}
	// The open read back unchanged content, so only two snapshots exist.
	if lines := strings.Count(out, "\n"); lines != 2 {
		t.Errorf("history list printed %d rows, want 2:\n%s", lines, out)
	}
	if !strings.Contains(out, "save_as") || !strings.Contains(out, "save ") {
		t.Errorf("history list missing origins:\n%s", out)
	}

	out, err = execute(t, "", "history", "search", "notes")
	if err != nil {
		t.Fatalf("history search: %v", err)
	}
	if strings.TrimSpace(out) != target {
		t.Errorf("history search = %q, want %q", out, target)
	}
}

func TestFileOpen_Failures(t *testing.T) {
	dir := setupEnv(t)

	_, err := execute(t, "", "file", "open", filepath.Join(dir, "missing.txt"))
	if apperr.KindOf(err) != apperr.KindReadFailed {
		t.Errorf("missing file: error = %v, want ReadFailed", err)
	}

	_, err = execute(t, "", "file", "open", "content://media/1")
	if apperr.KindOf(err) != apperr.KindUnsupportedLocation {
		t.Errorf("content URI: error = %v, want UnsupportedLocation", err)
	}

	if _, err := execute(t, "", "file", "open", ""); err != nil {
		t.Errorf("empty selection should be a cancel, got %v", err)
	}
}

func TestHistoryDisabled(t *testing.T) {
	setupEnv(t)
	t.Setenv("INKWELL_HISTORY_ENABLED", "false")

	_, err := execute(t, "", "history", "list")
	if err == nil || !strings.Contains(err.Error(), "history is disabled") {
		t.Errorf("error = %v, want history disabled", err)
	}
}

func TestConfigCommands(t *testing.T) {
	dir := setupEnv(t)

	if _, err := execute(t, "", "config", "set", "server.port", "4999"); err != nil {
		t.Fatalf("config set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config", "config.toml")); err != nil {
		t.Errorf("config.toml not written: %v", err)
	}

	noColor = true
	out, err := execute(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, "server.port = 4999") {
		t.Errorf("config show missing updated port:\n%s", out)
	}
	if strings.Contains(out, "server.token") {
		t.Errorf("config show exposed the token:\n%s", out)
	}

	_, err = execute(t, "", "config", "set", "bogus", "1")
	if err == nil || !strings.Contains(err.Error(), "valid keys") {
		t.Errorf("error = %v, want valid keys hint", err)
	}
}

func TestConfigToken_StableAcrossCalls(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("INKWELL_SERVER_TOKEN", "")

	first, err := execute(t, "", "config", "token")
	if err != nil {
		t.Fatalf("config token: %v", err)
	}
	if len(strings.TrimSpace(first)) != 64 {
		t.Errorf("token = %q, want 64 hex chars", first)
	}
	if _, err := os.Stat(filepath.Join(dir, "home", config.TokenFileName)); err != nil {
		t.Errorf("token file not written: %v", err)
	}

	second, err := execute(t, "", "config", "token")
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("second token = %q, want %q", second, first)
	}

	client, err := newAPIClient()
	if err != nil {
		t.Fatal(err)
	}
	if client.token != strings.TrimSpace(first) {
		t.Errorf("client token = %q, want the generated token", client.token)
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(styleSuccess, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}
}

func TestCountLabel(t *testing.T) {
	if got := countLabel(3, 10); got != "3" {
		t.Errorf("countLabel(3, 10) = %q", got)
	}
	if got := countLabel(10, 10); got != "10+" {
		t.Errorf("countLabel(10, 10) = %q", got)
	}
}

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
}

func newTestClient(t *testing.T, token string, handler http.Handler) (*apiClient, *[]recordedRequest) {
	t.Helper()
	var requests []recordedRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Auth:   r.Header.Get("Authorization"),
		})
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)
	return &apiClient{
		baseURL:    ts.URL,
		token:      token,
		httpClient: ts.Client(),
		dialer:     websocket.DefaultDialer,
	}, &requests
}

func TestAPIClientAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	client, reqs := newTestClient(t, "secret", ok)
	resp, err := client.get(context.Background(), "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if got := (*reqs)[0].Auth; got != "Bearer secret" {
		t.Errorf("auth = %q, want Bearer secret", got)
	}

	client, reqs = newTestClient(t, "", ok)
	resp, err = client.post(context.Background(), "/window/close-requested", map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()
	if got := (*reqs)[0].Auth; got != "" {
		t.Errorf("auth = %q, want none without a token", got)
	}
	if (*reqs)[0].Method != http.MethodPost {
		t.Errorf("method = %q, want POST", (*reqs)[0].Method)
	}
}

func TestAPIClient_NotReachable(t *testing.T) {
	client := &apiClient{baseURL: "http://127.0.0.1:1", httpClient: &http.Client{Timeout: time.Second}}
	_, err := client.get(context.Background(), "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	client, _ := newTestClient(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":{"message":"bad document","type":"parse_failed"}}`))
	}))
	resp, err := client.get(context.Background(), "/settings")
	if err != nil {
		t.Fatal(err)
	}
	var v any
	err = decodeJSON(resp, &v)
	if err == nil || !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "parse_failed") {
		t.Errorf("error = %v, want status and body", err)
	}
}

func TestWatch_ReceivesHubEvents(t *testing.T) {
	hub := events.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client, reqs := newTestClient(t, "tok", hub)

	got := make(chan events.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- client.watch(ctx, func(m events.Message) { got <- m })
	}()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
	hub.Notify(events.FileSaved, map[string]string{"path": "/tmp/a.txt"})

	select {
	case m := <-got:
		if m.Event != events.FileSaved {
			t.Errorf("event = %q, want %q", m.Event, events.FileSaved)
		}
		payload, _ := json.Marshal(m.Payload)
		if string(payload) != `{"path":"/tmp/a.txt"}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	if !strings.Contains((*reqs)[0].Path, "token=tok") {
		t.Errorf("websocket request %q does not carry the token", (*reqs)[0].Path)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not return after cancel")
	}
}

func TestBindingError(t *testing.T) {
	if bindingError(nil) != nil {
		t.Error("bindingError(nil) != nil")
	}
	err := bindingError(apperr.New(apperr.KindWriteFailed, "save file", "disk full"))
	if err.Error() != "write_failed: disk full" {
		t.Errorf("bindingError = %q", err.Error())
	}
}
