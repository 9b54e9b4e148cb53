package services

import (
	"log"
	"sync"

	"loginflow/backend/internal/registry"
	"loginflow/backend/internal/replay"

	"github.com/robfig/cron/v3"
)

// SchedulerService runs keep-alive logins for sites carrying a cron
// expression, so their sessions do not expire between visits.
type SchedulerService struct {
	cron    *cron.Cron
	sites   *registry.Registry
	replays *replay.Service

	mu      sync.Mutex
	entries map[uint]cron.EntryID // site record ID -> cron entry
}

var GlobalScheduler *SchedulerService

func InitScheduler(sites *registry.Registry, replays *replay.Service) error {
	GlobalScheduler = &SchedulerService{
		cron:    cron.New(),
		sites:   sites,
		replays: replays,
		entries: make(map[uint]cron.EntryID),
	}

	if err := GlobalScheduler.loadSchedules(); err != nil {
		return err
	}

	GlobalScheduler.cron.Start()
	log.Println("Scheduler service initialized")
	return nil
}

func (s *SchedulerService) loadSchedules() error {
	records, err := s.sites.Scheduled()
	if err != nil {
		return err
	}

	for _, record := range records {
		if err := s.AddSchedule(record.ID, record.CronExpression); err != nil {
			log.Printf("Failed to add schedule for site %d (%s): %v",
				record.ID, record.Hostname, err)
		}
	}

	log.Printf("Loaded %d scheduled keep-alive logins", len(records))
	return nil
}

// AddSchedule registers (or replaces) the keep-alive schedule for a site.
func (s *SchedulerService) AddSchedule(siteRecordID uint, expr string) error {
	s.RemoveSchedule(siteRecordID)
	if expr == "" {
		return nil
	}

	entryID, err := s.cron.AddFunc(expr, func() {
		s.runScheduledLogin(siteRecordID)
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[siteRecordID] = entryID
	s.mu.Unlock()

	log.Printf("Added schedule for site %d (entry %d): %s", siteRecordID, entryID, expr)
	return nil
}

// RemoveSchedule drops the schedule for a site, if one exists.
func (s *SchedulerService) RemoveSchedule(siteRecordID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[siteRecordID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, siteRecordID)
	}
}

func (s *SchedulerService) runScheduledLogin(siteRecordID uint) {
	record, err := s.sites.FindByID(siteRecordID)
	if err != nil || record == nil {
		log.Printf("Scheduled login: site %d no longer exists, dropping schedule", siteRecordID)
		s.RemoveSchedule(siteRecordID)
		return
	}
	if record.CronExpression == "" {
		s.RemoveSchedule(siteRecordID)
		return
	}

	log.Printf("Running scheduled login for %s", record.Hostname)
	run, err := s.replays.ReplayRecord(record, "scheduled")
	if err != nil {
		log.Printf("Scheduled login for %s failed to start: %v", record.Hostname, err)
		return
	}
	log.Printf("Scheduled login for %s finished: %s", record.Hostname, run.Status)
}

func (s *SchedulerService) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	log.Println("Scheduler service stopped")
}
