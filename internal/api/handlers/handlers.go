package handlers

import (
	"loginflow/backend/internal/capture"
	"loginflow/backend/internal/config"
	"loginflow/backend/internal/registry"
	"loginflow/backend/internal/replay"
)

var (
	cfg       *config.Config
	recorders *capture.Manager
	sites     *registry.Registry
	replays   *replay.Service
)

// Init wires the shared services into the handler package. Must be called
// before any route is served.
func Init(c *config.Config, m *capture.Manager, r *registry.Registry, s *replay.Service) {
	cfg = c
	recorders = m
	sites = r
	replays = s
}
