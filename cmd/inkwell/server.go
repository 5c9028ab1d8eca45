package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/inkwell/internal/api"
	"github.com/kalambet/inkwell/internal/config"
	"github.com/kalambet/inkwell/internal/events"
	"github.com/kalambet/inkwell/internal/settings"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the host commands over HTTP, websocket and MCP (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		stdio, _ := cmd.Flags().GetBool("stdio")
		return runServer(stdio)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running inkwell server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show inkwell status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("stdio", true, "also serve MCP over stdin/stdout")
}

func pidFilePath() (string, error) {
	dir, err := settings.AppDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "inkwell.pid"), nil
}

// resolveToken returns server.token or the token generated into the
// app-data dir.
func resolveToken(cfg config.Config) (string, error) {
	dir, err := settings.AppDataDir()
	if err != nil && cfg.Server.Token == "" {
		return "", err
	}
	return config.APIToken(cfg, dir)
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(stdio bool) error {
	fmt.Fprintf(os.Stderr, "inkwell version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	pidPath, err := pidFilePath()
	if err != nil {
		return fmt.Errorf("resolving PID file: %w", err)
	}
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("inkwell is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("inkwell is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Close(shutdownCtx)
	}()

	token, err := resolveToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	hub := events.NewHub(logger, events.WithAllowedOrigins(cfg.Server.Origins()...))
	go hub.Run(ctx)

	// HTTP callers pass their selection per request, so the shared host has
	// no picker of its own.
	h := a.host(a.filesFor(""), hub)

	handler := api.NewHandler(api.Deps{
		Host:     h,
		FilesFor: a.filesFor,
		History:  a.historyReader(),
		Events:   hub,
		Token:    token,
		Logger:   logger,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if stdio {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Host:     h,
			FilesFor: a.filesFor,
			History:  a.historyReader(),
			Version:  version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "inkwell listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func stopServer() error {
	pidPath, err := pidFilePath()
	if err != nil {
		printError("could not resolve PID file: %v", err)
		return err
	}
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("inkwell is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop inkwell (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to inkwell (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	var health struct {
		Status string `json:"status"`
	}
	resp, err := client.get(ctx, "/health")
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	default:
		if err := decodeJSON(resp, &health); err != nil {
			printStatus("Server", "unexpected health response: %v", err)
		} else {
			printStatus("Server", "%s on port %d", health.Status, cfg.Server.Port)
		}
	}

	if _, file, err := config.GetConfigPath(); err == nil {
		printStatus("Config file", "%s", file)
	}
	if path, err := settings.NewStore().ConfigPath(); err == nil {
		printStatus("Settings file", "%s", path)
	} else {
		printStatus("Settings file", "unavailable (%v)", err)
	}

	if !cfg.History.Enabled || cfg.History.DataDir == "" {
		printStatus("History", "disabled")
		return nil
	}
	printStatus("History", "%s (keeping %d per file)", cfg.History.DataDir, cfg.History.MaxPerPath)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}
