package websocket

import (
	"time"

	"go.uber.org/zap"
)

// IdleShutdownService ends the voice session when every client has
// been gone for longer than the grace period, so an abandoned browser
// tab does not keep the microphone pipeline alive.
type IdleShutdownService struct {
	hub      *Hub
	grace    time.Duration
	interval time.Duration
	logger   *zap.Logger
	stopChan chan struct{}
}

func NewIdleShutdownService(hub *Hub, grace time.Duration, logger *zap.Logger) *IdleShutdownService {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &IdleShutdownService{
		hub:      hub,
		grace:    grace,
		interval: 30 * time.Second,
		logger:   logger,
		stopChan: make(chan struct{}),
	}
}

// Start begins the background watch.
func (s *IdleShutdownService) Start() {
	go s.watchLoop()
	s.logger.Info("Idle shutdown service started", zap.Duration("grace", s.grace))
}

// Stop gracefully stops the service.
func (s *IdleShutdownService) Stop() {
	close(s.stopChan)
	s.logger.Info("Idle shutdown service stopped")
}

func (s *IdleShutdownService) watchLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.check()
		}
	}
}

func (s *IdleShutdownService) check() {
	last := s.hub.LastDisconnect()
	if last.IsZero() || time.Since(last) < s.grace {
		return
	}
	controller := s.hub.controller
	if controller == nil {
		return
	}
	if err := controller.Stop(); err == nil {
		s.logger.Info("Ended abandoned voice session",
			zap.Duration("idle", time.Since(last)))
	}
}
