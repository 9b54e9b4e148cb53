package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"gorm.io/gorm"

	"loginflow/backend/internal/config"
	"loginflow/backend/internal/models"
	"loginflow/backend/internal/registry"
	"loginflow/backend/pkg/chrome"
)

// Service runs replays against saved site records and keeps their run
// history. Replays read the registry only at page-load time; nothing mutates
// a record while its replay is in flight.
type Service struct {
	db       *gorm.DB
	registry *registry.Registry
	cfg      config.ReplayConfig

	mu      sync.Mutex
	running map[uint]context.CancelFunc // keyed by ReplayRun ID
}

func NewService(db *gorm.DB, reg *registry.Registry, cfg config.ReplayConfig) *Service {
	return &Service{
		db:       db,
		registry: reg,
		cfg:      cfg,
		running:  make(map[uint]context.CancelFunc),
	}
}

// AutoLogin replays the saved recording for rawURL's hostname, if one exists
// with at least one action. Returns nil when no record matches: an unknown
// site is not an error, just nothing to do.
func (s *Service) AutoLogin(rawURL, trigger string) (*models.ReplayRun, error) {
	record, err := s.registry.FindByURL(rawURL)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return s.ReplayRecord(record, trigger)
}

// ReplayRecord opens the record's login URL in a fresh browser, waits for the
// page load plus a settle delay, then drives the recorded actions. Blocks
// until the replay finishes.
func (s *Service) ReplayRecord(record *models.SiteRecord, trigger string) (*models.ReplayRun, error) {
	run, actions, err := s.prepareRun(record, trigger)
	if err != nil {
		return nil, err
	}
	s.runSteps(run, record, actions)
	return run, nil
}

// ReplayRecordAsync starts the replay in the background and returns the run
// immediately, so API callers can poll or cancel it by ID.
func (s *Service) ReplayRecordAsync(record *models.SiteRecord, trigger string) (*models.ReplayRun, error) {
	run, actions, err := s.prepareRun(record, trigger)
	if err != nil {
		return nil, err
	}
	go s.runSteps(run, record, actions)
	return run, nil
}

func (s *Service) prepareRun(record *models.SiteRecord, trigger string) (*models.ReplayRun, []models.Action, error) {
	actions, err := record.GetActions()
	if err != nil {
		return nil, nil, fmt.Errorf("stored actions are corrupt: %w", err)
	}
	if len(actions) == 0 {
		return nil, nil, fmt.Errorf("site %s has no recorded actions", record.Hostname)
	}

	run := &models.ReplayRun{
		SiteRecordID: record.ID,
		Trigger:      trigger,
		Status:       "running",
		StartTime:    time.Now(),
		TotalSteps:   len(actions),
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create replay run: %w", err)
	}
	return run, actions, nil
}

func (s *Service) runSteps(run *models.ReplayRun, record *models.SiteRecord, actions []models.Action) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.running[run.ID] = cancel
	s.mu.Unlock()
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.running, run.ID)
		s.mu.Unlock()
	}()

	result := s.execute(ctx, record.URL, actions)
	s.finishRun(run, result)

	log.Printf("replay run %d for %s: %s (%d/%d passed)",
		run.ID, record.Hostname, run.Status, run.PassedSteps, run.TotalSteps)
}

// Cancel aborts a running replay between steps.
func (s *Service) Cancel(runID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.running[runID]; ok {
		cancel()
		return true
	}
	return false
}

// IsRunning reports whether a replay run is still in flight.
func (s *Service) IsRunning(runID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[runID]
	return ok
}

func (s *Service) execute(ctx context.Context, targetURL string, actions []models.Action) *Result {
	chromePath := chrome.FindExecutable()
	if chromePath == "" {
		return failedResult(len(actions), "Chrome browser not found. Please install Google Chrome or Chromium")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	pageCtx, pageCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer pageCancel()

	pageCtx, timeoutCancel := context.WithTimeout(pageCtx, s.cfg.PageTimeout)
	defer timeoutCancel()

	// The load event alone is not enough on single-page apps; the settle
	// delay gives client-side rendering a head start before the resolver's
	// mutation waiting takes over.
	err := chromedp.Run(pageCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.PageSettleDelay),
	)
	if err != nil {
		return failedResult(len(actions), fmt.Sprintf("failed to open %s: %v", targetURL, err))
	}

	engine := NewEngine(NewChromeDriver(), Options{
		StepDelay:      s.cfg.StepDelay,
		SettleDelay:    s.cfg.ScrollSettleDelay,
		ResolveTimeout: s.cfg.ResolveTimeout,
	})
	return engine.Replay(pageCtx, actions)
}

func (s *Service) finishRun(run *models.ReplayRun, result *Result) {
	now := time.Now()
	run.EndTime = &now
	run.Duration = int(now.Sub(run.StartTime).Milliseconds())
	run.PassedSteps = result.PassedSteps
	run.FailedSteps = result.FailedSteps

	switch {
	case result.Cancelled:
		run.Status = "cancelled"
	case result.PassedSteps == 0 && result.FailedSteps > 0:
		run.Status = "failed"
	default:
		run.Status = "completed"
	}
	if result.FailedSteps > 0 && len(result.Logs) > 0 {
		for _, entry := range result.Logs {
			if entry.Level == "error" {
				run.ErrorMessage = entry.Message
				break
			}
		}
	}

	if logs, err := json.Marshal(result.Logs); err == nil {
		run.StepLogs = string(logs)
	}

	if err := s.db.Save(run).Error; err != nil {
		log.Printf("failed to persist replay run %d: %v", run.ID, err)
	}
}

func failedResult(total int, message string) *Result {
	r := &Result{TotalSteps: total, FailedSteps: total}
	r.addLog("error", message, -1, "", StepFailed, "", 0, message)
	return r
}

// Runs lists replay history for one site record, newest first.
func (s *Service) Runs(siteRecordID uint, limit int) ([]models.ReplayRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.ReplayRun
	err := s.db.Where("site_record_id = ?", siteRecordID).
		Order("start_time DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// Run fetches one replay run, or nil when absent.
func (s *Service) Run(runID uint) (*models.ReplayRun, error) {
	var run models.ReplayRun
	err := s.db.First(&run, runID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}
