package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"voicenotes/internal/ai"
	"voicenotes/internal/model"
	"voicenotes/internal/repository"
	"voicenotes/internal/stt"
)

var (
	// ErrBatchInProgress rejects a submit while another pass is running
	ErrBatchInProgress = errors.New("a submission batch is already running")
	// ErrNoProvider means no transcription service is configured
	ErrNoProvider = errors.New("no transcription provider configured")
	ErrNotFound   = errors.New("entry not found")
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vnote_submissions_total",
			Help: "Remote submissions by outcome (parsed, raw, failed).",
		},
		[]string{"result"},
	)
	entriesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vnote_entries",
		Help: "Number of stored entries after the last change.",
	})
	importsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vnote_imports_total",
		Help: "Entries created from a recording or an upload.",
	})
)

// Mover relocates a captured clip into durable storage
type Mover interface {
	Persist(transientURI string) (string, error)
}

// BatchReport summarizes one SubmitAll pass
type BatchReport struct {
	Processed int                `json:"processed"`
	Raw       int                `json:"raw"`
	Failed    int                `json:"failed"`
	Skipped   int                `json:"skipped"`
	Entries   []model.AudioEntry `json:"entries"`
}

// EntryView is an entry together with its observable state, which includes
// the transient processing state
type EntryView struct {
	model.AudioEntry
	State model.EntryState `json:"state"`
	Title string           `json:"title,omitempty"`
}

// Listener is notified with the full list after every change
type Listener func(entries []model.AudioEntry)

// Service drives entries through their lifecycle: import, submit, update
// with the parsed result, delete.
type Service struct {
	repo     repository.EntryRepository
	mover    Mover
	provider stt.Provider
	logger   *slog.Logger

	newID func() string
	now   func() time.Time

	// batch admits one SubmitAll at a time
	batch sync.Mutex

	mu         sync.RWMutex
	processing map[string]bool
	listeners  map[int]Listener
	nextListen int
}

// NewService wires the lifecycle manager. provider may be nil; SubmitAll then
// fails with ErrNoProvider while everything else keeps working.
func NewService(repo repository.EntryRepository, mover Mover, provider stt.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       repo,
		mover:      mover,
		provider:   provider,
		logger:     logger.With("component", "notes"),
		newID:      uuid.NewString,
		now:        time.Now,
		processing: make(map[string]bool),
		listeners:  make(map[int]Listener),
	}
}

// List returns every stored entry in stored order
func (s *Service) List(ctx context.Context) []model.AudioEntry {
	return s.repo.GetAll(ctx)
}

// ListByReport returns the entries recorded for one report
func (s *Service) ListByReport(ctx context.Context, reportID string) []model.AudioEntry {
	all := s.repo.GetAll(ctx)
	out := make([]model.AudioEntry, 0, len(all))
	for _, e := range all {
		if e.ReportID == reportID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Service) Get(ctx context.Context, id string) (model.AudioEntry, error) {
	e, ok := s.repo.Get(ctx, id)
	if !ok {
		return model.AudioEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}

// Views decorates entries with their current state
func (s *Service) Views(entries []model.AudioEntry) []EntryView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]EntryView, len(entries))
	for i, e := range entries {
		state := e.State()
		if s.processing[e.ID] {
			state = model.StateProcessing
		}
		views[i] = EntryView{AudioEntry: e, State: state, Title: e.Title()}
	}
	return views
}

// Import moves a freshly captured clip into durable storage and persists a
// new unprocessed entry for it. Nothing is saved when the move fails.
func (s *Service) Import(ctx context.Context, transientURI, reportID string) (model.AudioEntry, error) {
	durable, err := s.mover.Persist(transientURI)
	if err != nil {
		s.logger.Error("failed to move recording", "uri", transientURI, "error", err)
		return model.AudioEntry{}, err
	}

	entry := model.AudioEntry{
		ID:       s.newID(),
		Date:     s.now().UTC(),
		URI:      durable,
		ReportID: reportID,
	}
	saved, err := s.repo.Save(ctx, entry)
	if err != nil {
		s.logger.Error("failed to save entry", "id", entry.ID, "uri", durable, "error", err)
		return model.AudioEntry{}, err
	}

	importsTotal.Inc()
	s.logger.Info("entry created", "id", saved.ID, "uri", saved.URI, "report_id", reportID)
	s.notify(s.repo.GetAll(ctx))
	return saved, nil
}

// SubmitAll sends every unprocessed entry to the transcription provider, one
// at a time in stored order. Each completed entry is persisted immediately.
// A failed entry is logged and left unprocessed for the next run. Processed
// entries are never resubmitted.
func (s *Service) SubmitAll(ctx context.Context) (BatchReport, error) {
	if s.provider == nil {
		return BatchReport{}, ErrNoProvider
	}
	if !s.batch.TryLock() {
		return BatchReport{}, ErrBatchInProgress
	}
	defer s.batch.Unlock()

	snapshot := s.repo.GetAll(ctx)
	s.logger.Info("submission batch started", "entries", len(snapshot), "provider", s.provider.Name())

	var report BatchReport
	var cancelled error
	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		if entry.Processed {
			report.Skipped++
			continue
		}

		switch s.submitOne(ctx, entry) {
		case outcomeParsed:
			report.Processed++
		case outcomeRaw:
			report.Processed++
			report.Raw++
		case outcomeFailed:
			report.Failed++
		case outcomeGone:
			report.Skipped++
		}
	}

	report.Entries = s.repo.GetAll(context.WithoutCancel(ctx))
	s.notify(report.Entries)
	s.logger.Info("submission batch finished",
		"processed", report.Processed, "raw", report.Raw,
		"failed", report.Failed, "skipped", report.Skipped)
	return report, cancelled
}

type outcome int

const (
	outcomeParsed outcome = iota
	outcomeRaw
	outcomeFailed
	outcomeGone
)

func (s *Service) submitOne(ctx context.Context, entry model.AudioEntry) outcome {
	s.setProcessing(entry.ID, true)
	defer s.setProcessing(entry.ID, false)

	text, err := s.provider.Transcribe(ctx, entry.URI)
	if err != nil {
		submissionsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("transcription failed, entry stays unprocessed", "id", entry.ID, "error", err)
		return outcomeFailed
	}

	result, err := ai.ParseResult(text)
	kind := outcomeParsed
	if err != nil {
		kind = outcomeRaw
		s.logger.Warn("response is not structured, keeping raw text", "id", entry.ID, "error", err)
	}

	entry.Data = result
	entry.Processed = true
	entry.Sent = true
	// update only: the entry may have been deleted while the remote call was running
	ok, err := s.repo.Update(ctx, entry)
	if err != nil {
		submissionsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("failed to save processed entry", "id", entry.ID, "error", err)
		return outcomeFailed
	}
	if !ok {
		s.logger.Warn("entry deleted during submission, dropping result", "id", entry.ID)
		return outcomeGone
	}

	if kind == outcomeRaw {
		submissionsTotal.WithLabelValues("raw").Inc()
	} else {
		submissionsTotal.WithLabelValues("parsed").Inc()
	}
	s.logger.Info("entry processed", "id", entry.ID, "title", entry.Title())
	return kind
}

// Delete removes the entry and its audio file and returns the remaining
// entries. An unknown id leaves the list unchanged.
func (s *Service) Delete(ctx context.Context, id string) ([]model.AudioEntry, error) {
	remaining, err := s.repo.Delete(ctx, id)
	if err != nil {
		s.logger.Error("failed to delete entry", "id", id, "error", err)
		return nil, err
	}
	s.notify(remaining)
	return remaining, nil
}

// Clear drops every entry. Audio files stay on disk.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		s.logger.Error("failed to clear entries", "error", err)
		return err
	}
	s.notify([]model.AudioEntry{})
	return nil
}

// Subscribe registers fn for list changes and returns its cancel func
func (s *Service) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListen
	s.nextListen++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Service) notify(entries []model.AudioEntry) {
	entriesGauge.Set(float64(len(entries)))

	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(entries)
	}
}

func (s *Service) setProcessing(id string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.processing[id] = true
	} else {
		delete(s.processing, id)
	}
}
