package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/kalambet/inkwell/internal/apperr"
	"github.com/kalambet/inkwell/internal/config"
	"github.com/kalambet/inkwell/internal/events"
	"github.com/kalambet/inkwell/internal/settings"
)

// withLocalApp runs fn against components opened in this process. Info logs
// are suppressed so command output stays readable.
func withLocalApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logCfg := cfg.Log
	if logCfg.Level == "info" {
		logCfg.Level = "warn"
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, cfg, newLogger(logCfg, os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close(ctx)
	return fn(ctx, a)
}

// explainSettingsError adds the recovery hint to a settings failure.
func explainSettingsError(err error) error {
	if apperr.KindOf(err) == apperr.KindParseFailed {
		printWarning("the settings document is not valid; run 'inkwell settings reset' to restore defaults")
	}
	return err
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the editor settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the settings document",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalApp(cmd, func(_ context.Context, a *app) error {
			v, err := a.store.Load()
			if err != nil {
				return explainSettingsError(err)
			}
			data, err := settings.Encode(v)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		})
	},
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Query a setting by path, e.g. autoSave.interval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalApp(cmd, func(_ context.Context, a *app) error {
			v, err := a.store.Load()
			if err != nil {
				return explainSettingsError(err)
			}
			data, err := settings.Encode(v)
			if err != nil {
				return err
			}
			res := gjson.GetBytes(data, args[0])
			if !res.Exists() {
				return fmt.Errorf("no setting at %q", args[0])
			}
			if res.Type == gjson.String {
				fmt.Fprintln(cmd.OutOrStdout(), res.String())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), res.Raw)
			}
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one setting, e.g. fontSize 18 or autoSave.enabled false",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		return withLocalApp(cmd, func(_ context.Context, a *app) error {
			v, err := a.store.Load()
			if err != nil {
				return explainSettingsError(err)
			}
			updated, err := applySetting(v, key, value)
			if err != nil {
				return err
			}
			if err := a.store.Save(updated); err != nil {
				return err
			}
			printSuccess("Set %s = %s", key, value)
			return nil
		})
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Overwrite the settings document with defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalApp(cmd, func(_ context.Context, a *app) error {
			if _, err := a.store.Reset(); err != nil {
				return err
			}
			printSuccess("Settings reset to defaults")
			return nil
		})
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where the settings document lives",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := settings.NewStore().ConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var settingsFontsCmd = &cobra.Command{
	Use:   "fonts",
	Short: "List the font stacks the editor offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalApp(cmd, func(_ context.Context, a *app) error {
			current := ""
			if v, err := a.store.Load(); err == nil {
				current = v.FontFamily
			}
			for _, f := range settings.FontFamilies() {
				marker := " "
				if f.Stack == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n    %s\n",
					marker, colorize(styleBold, f.Key), f.Label, colorize(styleFaint, f.Stack))
			}
			return nil
		})
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd, settingsGetCmd, settingsSetCmd,
		settingsResetCmd, settingsPathCmd, settingsFontsCmd)
}

var settingKeyPattern = regexp.MustCompile(`^[A-Za-z]+(\.[A-Za-z]+)?$`)

// applySetting returns v with the field at key replaced by raw. String fields
// take raw verbatim; other fields take it as a JSON literal ("null" unsets
// resizerRatio).
func applySetting(v settings.EditorSettings, key, raw string) (settings.EditorSettings, error) {
	if !settingKeyPattern.MatchString(key) {
		return v, fmt.Errorf("invalid setting key %q", key)
	}
	defaults, err := settings.Encode(settings.Defaults())
	if err != nil {
		return v, err
	}
	field := gjson.GetBytes(defaults, key)
	if !field.Exists() {
		return v, fmt.Errorf("unknown setting %q", key)
	}

	var val any = raw
	if field.Type != gjson.String {
		if !gjson.Valid(raw) {
			return v, fmt.Errorf("value for %s must be JSON, got %q", key, raw)
		}
		if err := json.Unmarshal([]byte(raw), &val); err != nil {
			return v, err
		}
	}

	current, err := settings.Encode(v)
	if err != nil {
		return v, err
	}
	var doc map[string]any
	if err := json.Unmarshal(current, &doc); err != nil {
		return v, err
	}
	parts := strings.Split(key, ".")
	table := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := table[p].(map[string]any)
		if !ok {
			return v, fmt.Errorf("setting %q is not an object", p)
		}
		table = next
	}
	table[parts[len(parts)-1]] = val

	data, err := json.Marshal(doc)
	if err != nil {
		return v, err
	}
	updated, err := settings.Decode(data)
	if err != nil {
		return v, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return updated, nil
}

// --- file ---

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Open or save text files through the host file access",
}

var fileOpenCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "Read a text file and print its content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLocalApp(cmd, func(ctx context.Context, a *app) error {
			f, err := a.host(a.filesFor(args[0]), events.Discard).OpenTextFile(ctx)
			if err != nil {
				return cancelledIsOK(err)
			}
			printSuccess("Opened %s (%d bytes)", f.Name, len(f.Content))
			_, err = io.WriteString(cmd.OutOrStdout(), f.Content)
			return err
		})
	},
}

var fileSaveAsCmd = &cobra.Command{
	Use:   "save-as <path>",
	Short: "Write text from --from or stdin to a new file and print its absolute path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(cmd)
		if err != nil {
			return err
		}
		name, _ := cmd.Flags().GetString("name")
		return withLocalApp(cmd, func(ctx context.Context, a *app) error {
			saved, err := a.host(a.filesFor(args[0]), events.Discard).SaveTextFile(ctx, content, name)
			if err != nil {
				return cancelledIsOK(err)
			}
			printSuccess("Saved %d bytes", len(content))
			fmt.Fprintln(cmd.OutOrStdout(), saved.Path)
			return nil
		})
	},
}

var fileWriteCmd = &cobra.Command{
	Use:   "write <path>",
	Short: "Overwrite an existing file with text from --from or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(cmd)
		if err != nil {
			return err
		}
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return withLocalApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.host(a.filesFor(""), events.Discard).SaveToExistingFile(ctx, path, content); err != nil {
				return err
			}
			printSuccess("Wrote %d bytes to %s", len(content), path)
			return nil
		})
	},
}

func init() {
	fileSaveAsCmd.Flags().String("from", "", "read content from this file instead of stdin")
	fileSaveAsCmd.Flags().String("name", "", "suggested file name")
	fileWriteCmd.Flags().String("from", "", "read content from this file instead of stdin")
	fileCmd.AddCommand(fileOpenCmd, fileSaveAsCmd, fileWriteCmd)
}

func readContent(cmd *cobra.Command) (string, error) {
	from, _ := cmd.Flags().GetString("from")
	if from != "" {
		data, err := os.ReadFile(from)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", from, err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(data), nil
}

func cancelledIsOK(err error) error {
	if apperr.KindOf(err) == apperr.KindCancelled {
		printWarning("cancelled")
		return nil
	}
	return err
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse snapshots of opened and saved files",
}

func withHistory(cmd *cobra.Command, fn func(a *app) error) error {
	return withLocalApp(cmd, func(_ context.Context, a *app) error {
		if a.history == nil {
			return errors.New("history is disabled (see 'inkwell config show')")
		}
		return fn(a)
	})
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recently seen files, or the snapshots of one file with --path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		limit, _ := cmd.Flags().GetInt("limit")
		out := cmd.OutOrStdout()
		return withHistory(cmd, func(a *app) error {
			if path != "" {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				snaps, err := a.history.List(abs, limit)
				if err != nil {
					return err
				}
				if len(snaps) == 0 {
					fmt.Fprintln(out, "No snapshots found.")
					return nil
				}
				for _, s := range snaps {
					fmt.Fprintf(out, "%s  %s  %-7s  %d bytes\n",
						colorize(styleStep, s.ID[:8]), s.CreatedAt.Local().Format(time.DateTime), s.Origin, s.Size)
				}
				return nil
			}

			entries, err := a.history.Recent(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history yet.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %s  (%s snapshots)\n",
					e.LastSeen.Local().Format(time.DateTime), colorize(styleBold, e.Path), countLabel(e.Snapshots, a.cfg.History.MaxPerPath))
			}
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the content of a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(cmd, func(a *app) error {
			s, err := a.history.Get(args[0])
			if err != nil {
				return err
			}
			printStatus("Path", "%s", s.Path)
			printStatus("Taken", "%s (%s)", s.CreatedAt.Local().Format(time.DateTime), s.Origin)
			_, err = io.WriteString(cmd.OutOrStdout(), s.Content)
			return err
		})
	},
}

var historySearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search remembered file paths",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")
		return withHistory(cmd, func(a *app) error {
			entries, err := a.history.Search(query, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintln(cmd.OutOrStdout(), e.Path)
			}
			return nil
		})
	},
}

var historyForgetCmd = &cobra.Command{
	Use:   "forget <path>",
	Short: "Delete every snapshot of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		return withHistory(cmd, func(a *app) error {
			n, err := a.history.Forget(path)
			if err != nil {
				return err
			}
			printSuccess("Forgot %d snapshot(s) of %s", n, path)
			return nil
		})
	},
}

func init() {
	historyListCmd.Flags().String("path", "", "list snapshots of this file")
	historyListCmd.Flags().Int("limit", 20, "maximum number of rows")
	historySearchCmd.Flags().Int("limit", 10, "maximum number of results")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historySearchCmd, historyForgetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update host configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(styleBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print the HTTP API bearer token, generating it on first use",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		token, err := resolveToken(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configTokenCmd)
}

// --- events ---

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Watch or send window events on a running server",
}

var eventsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print events broadcast by the server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		printStep("Watching events at %s/events", client.baseURL)
		return client.watch(ctx, func(m events.Message) {
			line := fmt.Sprintf("%d  %s  %s", m.Seq, m.Time.Local().Format(time.TimeOnly), colorize(styleBold, m.Event))
			if m.Payload != nil {
				if data, err := json.Marshal(m.Payload); err == nil {
					line += "  " + string(data)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		})
	},
}

var eventsCloseCmd = &cobra.Command{
	Use:   "close-requested",
	Short: "Tell connected shells that the window is closing",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		resp, err := client.post(ctx, "/window/close-requested", map[string]string{})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Close request %s", result["status"])
		return nil
	},
}

func init() {
	eventsCmd.AddCommand(eventsWatchCmd, eventsCloseCmd)
}
