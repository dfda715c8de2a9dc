package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"voicenotes/internal/api"
	"voicenotes/internal/app"
	"voicenotes/internal/config"
	"voicenotes/internal/logging"
	"voicenotes/internal/model"
	"voicenotes/internal/notes"
	"voicenotes/internal/storage"
)

var (
	dataDir string
	backend string
	verbose bool
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "vnote",
		Short:         "Record, transcribe and organize voice notes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&backend, "store", "", "store backend: file, sqlite, postgres, memory (overrides STORE_BACKEND)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(playCmd())
	rootCmd.AddCommand(serveCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openApp wires the application. One-shot commands log warnings only unless
// --verbose is given; long-running ones use LOG_LEVEL.
func openApp(ctx context.Context, longRunning bool) (*app.App, error) {
	if dataDir != "" {
		os.Setenv("DATA_DIR", dataDir)
	}
	if backend != "" {
		os.Setenv("STORE_BACKEND", backend)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	opts := logging.Options{Level: "warn", Format: cfg.LogFormat, File: cfg.LogFile}
	if longRunning {
		opts.Level = cfg.LogLevel
	}
	if verbose {
		opts.Level = "debug"
	}
	return app.New(ctx, cfg, logging.New(opts), app.Options{})
}

// resolveID accepts a full id or a unique prefix of one
func resolveID(ctx context.Context, a *app.App, prefix string) (string, error) {
	var found string
	for _, e := range a.Notes.List(ctx) {
		if e.ID == prefix {
			return e.ID, nil
		}
		if strings.HasPrefix(e.ID, prefix) {
			if found != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			found = e.ID
		}
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", notes.ErrNotFound, prefix)
	}
	return found, nil
}

func listCmd() *cobra.Command {
	var reportID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			var entries []model.AudioEntry
			if cmd.Flags().Changed("report") {
				entries = a.Notes.ListByReport(cmd.Context(), reportID)
			} else {
				entries = a.Notes.List(cmd.Context())
			}

			if len(entries) == 0 {
				fmt.Println("No entries yet. Use 'vnote import' to add one.")
				return nil
			}

			for _, v := range a.Notes.Views(entries) {
				title := v.Title
				if title == "" {
					if text, ok := v.Data.Text(); ok {
						title = text
					} else {
						title = filepath.Base(storage.Path(v.URI))
					}
				}
				fmt.Printf("%s  %s  %-11s  %s\n", shortID(v.ID), v.Date.Local().Format("2006-01-02 15:04"), v.State, truncate(title, 60))
				for _, point := range v.Data.KeyPoints() {
					fmt.Printf("          - %s\n", truncate(point, 70))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&reportID, "report", "", "only entries recorded for this report")
	return cmd
}

func importCmd() *cobra.Command {
	var (
		reportID string
		move     bool
	)

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Add an audio file as a new unprocessed entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			src := args[0]
			if !move {
				// work on a uniquely named copy so the original stays put
				if src, err = stage(a.Config.CaptureDir, args[0]); err != nil {
					return err
				}
			}

			entry, err := a.Notes.Import(cmd.Context(), storage.URI(src), reportID)
			if err != nil {
				if !move {
					os.Remove(src)
				}
				return err
			}

			fmt.Printf("Added entry: %s\n", shortID(entry.ID))
			fmt.Printf("Audio: %s\n", storage.Path(entry.URI))
			return nil
		},
	}

	cmd.Flags().StringVar(&reportID, "report", "", "report id to file the entry under")
	cmd.Flags().BoolVar(&move, "move", false, "move the file instead of copying it")
	return cmd
}

func stage(dir, path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}
	dst := filepath.Join(dir, "import-"+uuid.NewString()+strings.ToLower(filepath.Ext(path)))
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return "", err
	}
	return dst, out.Close()
}

func submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Send every unprocessed entry for transcription",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Print("Submitting... ")
			report, err := a.Notes.SubmitAll(cmd.Context())
			if err != nil && !errors.Is(err, context.Canceled) {
				fmt.Println("failed")
				return err
			}
			fmt.Println("done")
			fmt.Printf("processed %d (raw %d), failed %d, skipped %d\n",
				report.Processed, report.Raw, report.Failed, report.Skipped)
			if report.Failed > 0 {
				fmt.Println("Failed entries stay unprocessed; run submit again to retry them.")
			}
			return err
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an entry and its audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := resolveID(cmd.Context(), a, args[0])
			if err != nil {
				return err
			}
			remaining, err := a.Notes.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %s, %d entries left\n", shortID(id), len(remaining))
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every entry (audio files are kept)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Notes.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("Cleared. Audio files remain in %s\n", a.Config.AudioDir())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm clearing all entries")
	return cmd
}

func playCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play [id]",
		Short: "Play an entry's audio until it ends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := resolveID(ctx, a, args[0])
			if err != nil {
				return err
			}
			entry, err := a.Notes.Get(ctx, id)
			if err != nil {
				return err
			}
			if _, err := a.Playback.Play(ctx, entry.URI); err != nil {
				return err
			}
			fmt.Printf("Playing %s (Ctrl+C to stop)\n", shortID(id))

			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					a.Playback.Stop()
					return nil
				case <-ticker.C:
					if a.Playback.State().URI == "" {
						return nil
					}
				}
			}
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.Config.GinMode == "" {
				gin.SetMode(gin.ReleaseMode)
			}
			if addr == "" {
				addr = ":" + a.Config.Port
			}
			return api.Serve(cmd.Context(), a, addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (defaults to :PORT)")
	return cmd
}

func truncate(s string, n int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
