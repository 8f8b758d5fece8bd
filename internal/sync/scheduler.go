package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/websocket"
)

const (
	defaultTickInterval = time.Minute
	defaultWorkerCount  = 4
	defaultGracePeriod  = 30 * time.Second
)

// ErrSyncInProgress is returned by TriggerSync when a record is already
// being reconciled; manual triggers and scheduler ticks share the same
// per-record exclusion.
var ErrSyncInProgress = fmt.Errorf("sync already in progress")

// Scheduler runs the auto-sync loop: a fixed-period tick scans all
// non-zero-interval sync records, computes due-ness and dispatches due
// records into bounded concurrent reconciliation attempts.
type Scheduler struct {
	cron        *cron.Cron
	service     *Service
	syncRepo    *storage.ExternalSyncRepository
	broadcaster *websocket.EventBroadcaster
	now         func() time.Time

	// Records currently in the Syncing state. Checked-and-inserted under
	// mu before any I/O begins so a record never syncs with itself.
	inFlight map[string]bool
	mu       sync.Mutex

	sem         chan struct{}
	wg          sync.WaitGroup
	gracePeriod time.Duration
	tick        time.Duration
}

// SchedulerOptions tunes the scheduler loop.
type SchedulerOptions struct {
	TickInterval time.Duration
	WorkerCount  int
	GracePeriod  time.Duration
}

// NewScheduler creates a new auto-sync scheduler.
func NewScheduler(
	service *Service,
	syncRepo *storage.ExternalSyncRepository,
	hub *websocket.Hub,
	opts SchedulerOptions,
) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = defaultWorkerCount
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = defaultGracePeriod
	}

	var broadcaster *websocket.EventBroadcaster
	if hub != nil {
		broadcaster = websocket.NewEventBroadcaster(hub)
	}

	return &Scheduler{
		cron:        cron.New(),
		service:     service,
		syncRepo:    syncRepo,
		broadcaster: broadcaster,
		now:         func() time.Time { return time.Now().UTC() },
		inFlight:    make(map[string]bool),
		sem:         make(chan struct{}, opts.WorkerCount),
		gracePeriod: opts.GracePeriod,
		tick:        opts.TickInterval,
	}
}

// SetClock overrides the scheduler's time source.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Start begins the periodic tick. Called once at process boot.
func (s *Scheduler) Start() error {
	log.Println("Starting auto-sync scheduler...")

	spec := "@every " + s.tick.String()
	if _, err := s.cron.AddFunc(spec, func() {
		s.Tick(context.Background())
	}); err != nil {
		return fmt.Errorf("scheduling sync tick: %w", err)
	}

	s.cron.Start()
	log.Printf("Auto-sync scheduler started (tick %s)", s.tick)
	return nil
}

// Stop shuts the scheduler down, waiting for in-flight attempts up to the
// grace period before abandoning them.
func (s *Scheduler) Stop() {
	log.Println("Stopping auto-sync scheduler...")
	<-s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Auto-sync scheduler stopped")
	case <-time.After(s.gracePeriod):
		log.Println("Auto-sync scheduler stopped; abandoning in-flight attempts")
	}
}

// Tick scans all auto-sync records and dispatches those that are due.
// One record's failure never blocks the others.
func (s *Scheduler) Tick(ctx context.Context) {
	records, err := s.syncRepo.ListAutoSync(ctx)
	if err != nil {
		log.Printf("Auto-sync scan failed: %v", err)
		return
	}

	now := s.now()
	for _, rec := range records {
		if !rec.IsDue(now) {
			continue
		}
		if err := s.dispatch(rec.ID, rec.Name); err == ErrSyncInProgress {
			// Still syncing from a previous tick; skip.
			continue
		}
	}
}

// TriggerSync starts a manual reconciliation attempt for a record.
// It uses the same per-record exclusion as the tick, so a manual trigger
// can never overlap a scheduler-initiated attempt for the same record.
func (s *Scheduler) TriggerSync(syncID, syncName string) error {
	return s.dispatch(syncID, syncName)
}

// DueSyncIDs returns the IDs the scheduler would dispatch at the given time.
func (s *Scheduler) DueSyncIDs(ctx context.Context, now time.Time) ([]string, error) {
	records, err := s.syncRepo.ListAutoSync(ctx)
	if err != nil {
		return nil, err
	}

	var due []string
	for _, rec := range records {
		if rec.IsDue(now) {
			due = append(due, rec.ID)
		}
	}
	return due, nil
}

func (s *Scheduler) dispatch(syncID, syncName string) error {
	if !s.acquire(syncID) {
		return ErrSyncInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(syncID)

		s.sem <- struct{}{}
		defer func() { <-s.sem }()

		s.runSync(syncID, syncName)
	}()

	return nil
}

// acquire marks the record as Syncing. Returns false if it already is.
func (s *Scheduler) acquire(syncID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[syncID] {
		return false
	}
	s.inFlight[syncID] = true
	return true
}

func (s *Scheduler) release(syncID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, syncID)
}

// IsSyncing reports whether a record is currently in the Syncing state.
func (s *Scheduler) IsSyncing(syncID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[syncID]
}

func (s *Scheduler) runSync(syncID, syncName string) {
	ctx := context.Background()
	log.Printf("Syncing external calendar %s (%s)", syncID, syncName)

	result, err := s.service.SyncOne(ctx, syncID)
	if err != nil {
		log.Printf("External sync failed for %s: %v", syncID, err)
		if s.broadcaster != nil && result != nil {
			s.broadcaster.BroadcastSyncError(result.CalendarID, syncID, syncName, err)
		}
		return
	}

	log.Printf("External sync completed for %s: %d events, %d created, %d updated, %d removed",
		syncID, result.EventsFound, result.ShiftsCreated, result.ShiftsUpdated, result.ShiftsRemoved)

	if s.broadcaster != nil {
		s.broadcaster.BroadcastSyncCompleted(*result)
	}
}
