package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/clinicimport/internal/config"
	"github.com/JonMunkholm/clinicimport/internal/logging"
)

// DefaultRunRetention is how long a finished run stays queryable.
const DefaultRunRetention = 15 * time.Minute

// Service runs imports and tracks asynchronous runs by ID.
type Service struct {
	registry    *Registry
	store       Store
	matcher     HeaderMatcher
	limiter     *ImportLimiter
	maxFileSize int64
	retention   time.Duration

	mu   sync.RWMutex
	runs map[string]*activeRun
}

type activeRun struct {
	ID       string
	Kind     Kind
	FileName string
	Done     chan struct{}

	mu        sync.Mutex
	progress  ImportProgress
	result    *ImportResult
	err       error
	finished  bool
	listeners []chan ImportProgress
}

// NewService creates a Service over store using the import settings of cfg.
func NewService(registry *Registry, store Store, cfg config.ImportConfig) (*Service, error) {
	matcher, err := MatcherByName(cfg.HeaderMatcher)
	if err != nil {
		return nil, err
	}

	retention := cfg.RunRetention
	if retention <= 0 {
		retention = DefaultRunRetention
	}

	return &Service{
		registry:    registry,
		store:       store,
		matcher:     matcher,
		limiter:     NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		maxFileSize: cfg.MaxFileSize,
		retention:   retention,
		runs:        make(map[string]*activeRun),
	}, nil
}

// Registry returns the definitions this service imports.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Definition returns the definition of kind or an ErrUnknownKind error.
func (s *Service) Definition(kind Kind) (Definition, error) {
	def, ok := s.registry.Get(kind)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return def, nil
}

// Import runs a whole import synchronously and returns its result.
// Fatal errors are returned as *ImportError; row failures are in the result.
func (s *Service) Import(ctx context.Context, kind Kind, fileName string, r io.Reader, progress ProgressFunc) (*ImportResult, error) {
	def, err := s.Definition(kind)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	return s.run(ctx, s.store, uuid.New().String(), def, fileName, r, progress)
}

// StartImport begins an asynchronous run and returns its ID immediately.
// The run keeps the values of ctx but not its cancellation.
func (s *Service) StartImport(ctx context.Context, kind Kind, fileName string, data []byte) (string, error) {
	def, err := s.Definition(kind)
	if err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	run := &activeRun{
		ID:       runID,
		Kind:     kind,
		FileName: fileName,
		Done:     make(chan struct{}),
		progress: ImportProgress{
			RunID:    runID,
			Kind:     kind,
			Phase:    PhaseQueued,
			FileName: fileName,
		},
	}

	s.mu.Lock()
	s.runs[runID] = run
	s.mu.Unlock()

	go s.execute(context.WithoutCancel(ctx), run, def, data)

	return runID, nil
}

func (s *Service) execute(ctx context.Context, run *activeRun, def Definition, data []byte) {
	defer func() {
		s.limiter.Release()
		s.cleanup(run.ID, s.retention)
	}()

	run.update(func(p *ImportProgress) { p.Phase = PhaseParsing })

	result, err := s.run(ctx, s.store, run.ID, def, run.FileName, bytes.NewReader(data), func(current, total int) {
		run.update(func(p *ImportProgress) {
			p.Phase = PhaseImporting
			p.Current = current
			p.Total = total
		})
	})

	run.finish(result, err)
}

func (s *Service) run(ctx context.Context, store Store, runID string, def Definition, fileName string, r io.Reader, progress ProgressFunc) (*ImportResult, error) {
	logger := logging.ForRun(ctx, runID, string(def.Kind))
	start := time.Now()

	logger.Info("import started", "file", fileName)

	text, err := DecodeText(r, s.maxFileSize)
	if err != nil {
		logger.Warn("import aborted", "file", fileName, "error", err)
		return nil, fatal(err)
	}

	result, err := NewPipeline(def, store, s.matcher, logger).Run(ctx, text, progress)
	if err != nil {
		logger.Warn("import aborted", "file", fileName, "error", err)
		return nil, err
	}

	result.RunID = runID
	result.FileName = fileName
	result.Duration = time.Since(start)

	logger.Info("import finished",
		"file", fileName,
		"rows", result.TotalRows,
		"success", result.Success,
		"duplicates", result.Duplicates,
		"errors", len(result.Errors),
		"duration", result.Duration,
	)

	return result, nil
}

// SubscribeProgress returns a channel that receives progress updates.
// The current state is sent first, and the channel is closed when the run ends.
// Updates are dropped for a subscriber that falls behind.
func (s *Service) SubscribeProgress(runID string) (<-chan ImportProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 16)

	run.mu.Lock()
	defer run.mu.Unlock()

	ch <- run.progress
	if run.finished {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)

	return ch, nil
}

// GetResult blocks until the run finishes or ctx is done.
func (s *Service) GetResult(ctx context.Context, runID string) (*ImportResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.result, run.err
}

// GetProgress returns the current progress without blocking.
func (s *Service) GetProgress(runID string) (ImportProgress, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return ImportProgress{}, err
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return run.progress, nil
}

// LimiterStatus reports the import slots in use.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import has finished or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) lookup(runID string) (*activeRun, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

// cleanup removes the run from tracking after a delay.
func (s *Service) cleanup(runID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.runs, runID)
		s.mu.Unlock()
	})
}

// update applies fn to the progress and notifies listeners.
func (run *activeRun) update(fn func(*ImportProgress)) {
	run.mu.Lock()
	defer run.mu.Unlock()

	fn(&run.progress)
	run.notify()
}

// finish records the outcome, sends the terminal progress and closes listeners.
func (run *activeRun) finish(result *ImportResult, err error) {
	run.mu.Lock()
	defer run.mu.Unlock()

	run.result, run.err = result, err
	if err != nil {
		run.progress.Phase = PhaseFailed
		run.progress.Error = err.Error()
	} else {
		run.progress.Phase = PhaseComplete
		run.progress.Current = result.TotalRows
		run.progress.Total = result.TotalRows
		run.progress.Success = result.Success
		run.progress.Duplicates = result.Duplicates
		run.progress.Errors = len(result.Errors)
	}
	run.notify()

	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
	run.finished = true
	close(run.Done)
}

// notify must be called with run.mu held.
func (run *activeRun) notify() {
	for _, ch := range run.listeners {
		select {
		case ch <- run.progress:
		default:
			// Listener is slow, skip this update
		}
	}
}
