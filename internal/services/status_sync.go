package services

import (
	"log"
	"sync"
	"time"

	"loginflow/backend/internal/models"
	"loginflow/backend/internal/replay"
	"loginflow/backend/pkg/database"
)

// StatusSyncService reconciles replay run rows left in "running" state after
// a crash or restart with the in-memory replay service.
type StatusSyncService struct {
	replays *replay.Service

	mu      sync.Mutex
	running bool
	ticker  *time.Ticker
	done    chan struct{}
}

var GlobalStatusSync *StatusSyncService

func InitStatusSync(replays *replay.Service) {
	GlobalStatusSync = &StatusSyncService{replays: replays}
	GlobalStatusSync.Start()
}

func (s *StatusSyncService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	s.running = true
	s.ticker = time.NewTicker(30 * time.Second)
	s.done = make(chan struct{})

	go s.syncLoop()
	log.Println("Status sync service started")
}

func (s *StatusSyncService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.running = false
	s.ticker.Stop()
	close(s.done)
	log.Println("Status sync service stopped")
}

func (s *StatusSyncService) syncLoop() {
	for {
		select {
		case <-s.ticker.C:
			s.syncRunStates()
		case <-s.done:
			return
		}
	}
}

func (s *StatusSyncService) syncRunStates() {
	var runs []models.ReplayRun
	err := database.DB.Where("status = ?", "running").Find(&runs).Error
	if err != nil {
		log.Printf("Failed to query running replay runs: %v", err)
		return
	}

	fixed := 0
	for _, run := range runs {
		if s.replays.IsRunning(run.ID) {
			continue
		}
		// A run that just started may not have registered yet.
		if time.Since(run.StartTime) < 30*time.Second {
			continue
		}

		now := time.Now()
		duration := int(now.Sub(run.StartTime).Milliseconds())
		err := database.DB.Model(&models.ReplayRun{}).Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":        "failed",
				"end_time":      now,
				"duration":      duration,
				"error_message": "run was orphaned, likely by a service restart",
			}).Error
		if err != nil {
			log.Printf("Failed to fix orphaned replay run %d: %v", run.ID, err)
			continue
		}
		fixed++
	}

	if fixed > 0 {
		log.Printf("Status sync fixed %d orphaned replay runs", fixed)
	}
}
