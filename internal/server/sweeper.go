package server

import (
	"context"
	"log"
	"time"

	"github.com/adeel99sa/ZephixPlatform-sub021/internal/engine"
)

const (
	defaultDailyInterval  = 24 * time.Hour
	defaultHourlyInterval = time.Hour
)

// sweeper drives the engine's sweeps on their configured cadence. The engine
// itself is timer-free; all scheduling lives here.
type sweeper struct {
	engine engine.Engine
	daily  time.Duration
	hourly time.Duration
	stop   chan struct{}
}

// StartSweeper launches the daily and hourly sweep loops. The returned stop
// function is idempotent.
func StartSweeper(e engine.Engine) func() {
	s := &sweeper{
		engine: e,
		daily:  defaultDailyInterval,
		hourly: defaultHourlyInterval,
		stop:   make(chan struct{}),
	}
	if e.Config != nil {
		if h := e.Config.Scan.DailyIntervalHours; h > 0 {
			s.daily = time.Duration(h) * time.Hour
		}
		if m := e.Config.Scan.HourlyIntervalMins; m > 0 {
			s.hourly = time.Duration(m) * time.Minute
		}
	}
	go s.runDaily()
	go s.runHourly()
	stopped := false
	return func() {
		if !stopped {
			stopped = true
			close(s.stop)
		}
	}
}

func (s *sweeper) runDaily() {
	ticker := time.NewTicker(s.daily)
	defer ticker.Stop()
	for {
		if _, err := s.engine.DailySweep(context.Background()); err != nil {
			log.Printf("sweeper: daily sweep failed: %v", err)
		}
		select {
		case <-ticker.C:
		case <-s.stop:
			return
		}
	}
}

func (s *sweeper) runHourly() {
	ticker := time.NewTicker(s.hourly)
	defer ticker.Stop()
	for {
		if _, err := s.engine.HourlySweep(context.Background()); err != nil {
			log.Printf("sweeper: hourly sweep failed: %v", err)
		}
		select {
		case <-ticker.C:
		case <-s.stop:
			return
		}
	}
}
