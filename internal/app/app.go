package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"voicenotes/internal/config"
	"voicenotes/internal/db"
	"voicenotes/internal/notes"
	"voicenotes/internal/playback"
	"voicenotes/internal/recorder"
	"voicenotes/internal/repository"
	"voicenotes/internal/storage"
	"voicenotes/internal/stt"
)

// App holds the wired components shared by the HTTP server and the CLI
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Notes    *notes.Service
	Session  *recorder.Session
	Playback *playback.Controller

	kv  repository.KV
	cue *playback.Controller

	mu          sync.Mutex
	lastErr     error
	lastCapture string
}

// Options overrides the external collaborators, mainly for tests
type Options struct {
	Provider stt.Provider
	Recorder recorder.Recorder
	Player   playback.Player
}

// New builds every component from cfg
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kv, err := OpenKV(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mover := storage.NewMover(cfg.AudioDir())
	repo := repository.NewEntryStore(kv, cfg.StoreKey, mover, logger)

	provider := opts.Provider
	if provider == nil {
		p, err := stt.CreateProvider(cfg.STTSettings(), logger)
		if err != nil {
			logger.Warn("transcription provider not available, submit is disabled", "component", "app", "error", err)
		} else {
			provider = p
			logger.Info("transcription provider initialized", "component", "app", "provider", p.Name())
		}
	}

	player := opts.Player
	if player == nil {
		player = playback.NewExecPlayer(cfg.PlayCommand)
	}
	rec := opts.Recorder
	if rec == nil {
		rec = recorder.NewExecRecorder(cfg.RecordCommand, cfg.CaptureDir)
	}

	a := &App{
		Config:   cfg,
		Logger:   logger,
		Notes:    notes.NewService(repo, mover, provider, logger),
		Playback: playback.NewController(player, logger),
		cue:      playback.NewController(player, logger.With("slot", "cue")),
		kv:       kv,
	}
	a.Session = recorder.NewSession(recorder.SessionConfig{
		Recorder:    rec,
		Debounce:    cfg.RecordDebounce,
		MaxDuration: cfg.RecordMaxDuration,
		OnStarted:   a.playCue,
		OnCaptured:  a.importCapture,
		OnError:     a.recordError,
		Logger:      logger,
	})
	return a, nil
}

// OpenKV opens the configured store backend
func OpenKV(ctx context.Context, cfg *config.Config) (repository.KV, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		return repository.NewMemoryKV(), nil
	case config.BackendFile:
		return repository.NewFileKV(filepath.Join(cfg.DataDir, "store"))
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		conn, err := db.Open(ctx, db.SQLite, filepath.Join(cfg.DataDir, "vnote.db"))
		if err != nil {
			return nil, err
		}
		return repository.NewSQLKV(conn, db.SQLite), nil
	case config.BackendPostgres:
		dialect := db.DialectFromURL(cfg.DatabaseURL)
		conn, err := db.Open(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return repository.NewSQLKV(conn, dialect), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}

// Press starts the press-and-hold flow; the finished recording is filed
// under reportID.
func (a *App) Press(reportID string) error {
	a.mu.Lock()
	a.lastErr = nil
	a.mu.Unlock()

	return a.Session.Press(reportID)
}

func (a *App) Release() {
	a.Session.Release()
}

// RecordingStatus is the observable state of the recording slot
type RecordingStatus struct {
	State       recorder.SessionState `json:"state"`
	Elapsed     time.Duration         `json:"elapsed_ns"`
	LastCapture string                `json:"last_entry_id,omitempty"`
	LastError   string                `json:"last_error,omitempty"`
}

func (a *App) RecordingStatus() RecordingStatus {
	st := RecordingStatus{State: a.Session.State(), Elapsed: a.Session.Elapsed()}
	a.mu.Lock()
	defer a.mu.Unlock()
	st.LastCapture = a.lastCapture
	if a.lastErr != nil {
		st.LastError = a.lastErr.Error()
	}
	return st
}

func (a *App) importCapture(uri, reportID string, reason recorder.StopReason) {
	entry, err := a.Notes.Import(context.Background(), uri, reportID)
	if err != nil {
		a.recordError(err)
		return
	}
	a.mu.Lock()
	a.lastCapture = entry.ID
	a.mu.Unlock()
	a.Logger.Info("recording filed", "component", "app", "id", entry.ID, "reason", reason)
}

func (a *App) recordError(err error) {
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
}

func (a *App) playCue() {
	if a.Config.RecordCueFile == "" {
		return
	}
	// restart rather than toggle a cue that is still sounding
	a.cue.Stop()
	if _, err := a.cue.Play(context.Background(), storage.URI(a.Config.RecordCueFile)); err != nil {
		a.Logger.Debug("cue sound failed", "component", "app", "error", err)
	}
}

// Close stops any recording or playback and closes the store
func (a *App) Close() error {
	a.Session.Cancel()
	a.Playback.Stop()
	a.cue.Stop()
	return a.kv.Close()
}
