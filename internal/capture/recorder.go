package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"loginflow/backend/internal/models"
	"loginflow/backend/internal/registry"
	"loginflow/backend/internal/session"
	"loginflow/backend/pkg/chrome"
)

// Recorder owns one recording pass: a visible Chrome instance with the
// capture script injected, the session store collecting converted actions,
// and the persisted session mirror.
type Recorder struct {
	ctx    context.Context
	cancel context.CancelFunc

	store     *session.Store
	db        *gorm.DB
	sessionID string
	targetURL string
	domain    string

	mu     sync.RWMutex
	wsConn *websocket.Conn
}

func NewRecorder(sessionID string, db *gorm.DB) *Recorder {
	return &Recorder{
		store:     session.NewStore(),
		db:        db,
		sessionID: sessionID,
	}
}

// Start opens the target page in a visible browser and begins capturing.
func (r *Recorder) Start(targetURL string) error {
	domain, err := registry.HostnameFromURL(targetURL)
	if err != nil {
		return err
	}

	chromePath := chrome.FindExecutable()
	if chromePath == "" {
		return fmt.Errorf("Chrome browser not found. Please install Google Chrome or Chromium")
	}

	// Recording needs a headful browser: the user drives the login.
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-sync", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	r.ctx = ctx
	r.cancel = func() {
		ctxCancel()
		allocCancel()
	}

	// Login flows often navigate mid-recording (SSO redirects, two-step
	// forms); re-inject the capture script as soon as a navigation lands so
	// no clicks slip through before the next drain tick.
	chromedp.ListenTarget(r.ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventFrameNavigated); ok {
			go func() {
				_ = chromedp.Run(r.ctx, chromedp.Evaluate(captureScript, nil))
			}()
		}
	})

	err = chromedp.Run(r.ctx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(captureScript, nil),
	)
	if err != nil {
		r.cancel()
		return fmt.Errorf("failed to start recording: %w", err)
	}

	r.targetURL = targetURL
	r.domain = domain
	r.store.Start(domain)

	go r.pollEvents()

	log.Printf("recording session %s started for %s", r.sessionID, domain)
	return nil
}

// pollEvents drains the page's event buffer. The drain expression re-installs
// the capture script when a navigation wiped it; the store's idempotent Start
// keeps the already-captured actions across that boundary.
func (r *Recorder) pollEvents() {
	ticker := time.NewTicker(150 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if !r.store.State().IsRecording {
				return
			}

			var events []RawEvent
			if err := chromedp.Run(r.ctx, chromedp.Evaluate(drainExpr, &events)); err != nil {
				// Transient during navigations; the next tick re-injects.
				continue
			}
			if len(events) == 0 {
				continue
			}

			start := r.store.State().StartTime
			count := 0
			for _, ev := range events {
				action, ok := toAction(ev, start)
				if !ok {
					continue
				}
				n, err := r.store.Append(action)
				if err != nil {
					// Session ended while events were still in flight.
					return
				}
				count = n
				r.pushToSocket(action, n)
			}
			if count > 0 {
				r.updateOverlay(count)
				r.persistMirror()
			}
		}
	}
}

func (r *Recorder) updateOverlay(count int) {
	expr := fmt.Sprintf("window.__loginflowCapture && window.__loginflowCapture.setCount(%d)", count)
	_ = chromedp.Run(r.ctx, chromedp.Evaluate(expr, nil))
}

// persistMirror rewrites the crash-recovery copy of the session after every
// captured batch.
func (r *Recorder) persistMirror() {
	snap := r.store.State()
	data, err := json.Marshal(snap.Actions)
	if err != nil {
		return
	}

	var mirror models.SessionMirror
	err = r.db.Where("session_id = ?", r.sessionID).First(&mirror).Error
	if err != nil {
		mirror = models.SessionMirror{SessionID: r.sessionID}
	}
	mirror.Domain = snap.Domain
	mirror.Actions = string(data)
	mirror.ActionCount = snap.Count
	mirror.StartTime = snap.StartTime

	if err := r.db.Save(&mirror).Error; err != nil {
		log.Printf("failed to persist session mirror %s: %v", r.sessionID, err)
	}
}

func (r *Recorder) pushToSocket(action models.Action, count int) {
	r.mu.RLock()
	conn := r.wsConn
	r.mu.RUnlock()
	if conn == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"type":   "action",
		"action": action,
		"count":  count,
	})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("websocket push failed for session %s: %v", r.sessionID, err)
	}
}

// SetWebSocketConnection attaches a live status stream for the popup UI.
func (r *Recorder) SetWebSocketConnection(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wsConn = conn
}

// State returns a read-only snapshot of the in-progress session.
func (r *Recorder) State() session.Snapshot {
	return r.store.State()
}

// Domain returns the hostname being recorded.
func (r *Recorder) Domain() string {
	return r.domain
}

// TargetURL returns the URL the recording started on.
func (r *Recorder) TargetURL() string {
	return r.targetURL
}

// Finish closes the browser and ends the session, returning the captured
// actions. The caller decides whether they are saved or discarded.
func (r *Recorder) Finish() []models.Action {
	if r.cancel != nil {
		r.cancel()
	}
	actions := r.store.Stop()
	r.dropMirror()
	return actions
}

func (r *Recorder) dropMirror() {
	if err := r.db.Where("session_id = ?", r.sessionID).
		Delete(&models.SessionMirror{}).Error; err != nil {
		log.Printf("failed to drop session mirror %s: %v", r.sessionID, err)
	}
}

// Manager holds recording sessions keyed by session ID. Exactly one session
// may be live at a time; concurrent recordings are not supported.
type Manager struct {
	mu        sync.RWMutex
	recorders map[string]*Recorder
	db        *gorm.DB
}

func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		recorders: make(map[string]*Recorder),
		db:        db,
	}
}

// Start begins a recording session for targetURL.
func (m *Manager) Start(sessionID, targetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, r := range m.recorders {
		if r.State().IsRecording {
			return fmt.Errorf("recording session %s is already in progress", id)
		}
	}
	if _, exists := m.recorders[sessionID]; exists {
		return fmt.Errorf("recording session %s already exists", sessionID)
	}

	recorder := NewRecorder(sessionID, m.db)
	if err := recorder.Start(targetURL); err != nil {
		return err
	}
	m.recorders[sessionID] = recorder
	return nil
}

// Get returns the recorder for a session.
func (m *Manager) Get(sessionID string) (*Recorder, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recorders[sessionID]
	return r, ok
}

// Status reports whether the session is recording and its current actions.
func (m *Manager) Status(sessionID string) (session.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.recorders[sessionID]
	if !ok {
		return session.Snapshot{}, fmt.Errorf("recording session %s not found", sessionID)
	}
	return r.State(), nil
}

// Finish ends a session and returns its actions. The recorder stays
// registered until Cleanup so a save can still read its target URL.
func (m *Manager) Finish(sessionID string) ([]models.Action, *Recorder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recorders[sessionID]
	if !ok {
		return nil, nil, fmt.Errorf("recording session %s not found", sessionID)
	}
	return r.Finish(), r, nil
}

// Cleanup forgets a finished session.
func (m *Manager) Cleanup(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recorders, sessionID)
}
