package monitor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"leasesync/internal/logs"
	"leasesync/internal/runner"
)

// RunFunc performs one sync run
type RunFunc func(ctx context.Context) runner.Report

// Monitor runs syncs when the inventory changes and on a fixed interval.
// Runs never overlap; triggers arriving during a run collapse into one
// follow-up run.
type Monitor struct {
	inventoryPath string
	interval      time.Duration
	run           RunFunc
	logManager    *logs.Manager
	logger        zerolog.Logger

	watcher *fsnotify.Watcher
	trigger chan string

	mu   sync.RWMutex
	last *runner.Report
	runs int
}

// New creates a new monitor instance. interval 0 disables periodic runs.
func New(inventoryPath string, interval time.Duration, run RunFunc, logManager *logs.Manager, logger zerolog.Logger) *Monitor {
	return &Monitor{
		inventoryPath: inventoryPath,
		interval:      interval,
		run:           run,
		logManager:    logManager,
		logger:        logger,
		trigger:       make(chan string, 1),
	}
}

// Run blocks, running syncs until ctx is cancelled. The first run starts
// right away.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.start(ctx); err != nil {
		return err
	}
	defer m.watcher.Close()

	var tick <-chan time.Time
	if m.interval > 0 {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	m.Trigger("startup")

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Watch stopped")
			return nil
		case <-tick:
			m.Trigger("interval")
		case reason := <-m.trigger:
			m.execute(ctx, reason)
		}
	}
}

// Trigger requests a run. It never blocks; a request made while another is
// pending is dropped.
func (m *Monitor) Trigger(reason string) {
	select {
	case m.trigger <- reason:
	default:
		m.logger.Debug().Str("reason", reason).Msg("Run already pending")
	}
}

func (m *Monitor) execute(ctx context.Context, reason string) {
	m.logger.Info().Str("reason", reason).Msg("Sync triggered")
	report := m.run(ctx)

	m.mu.Lock()
	m.last = &report
	m.runs++
	m.mu.Unlock()
}

func (m *Monitor) start(ctx context.Context) error {
	var err error
	m.watcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	go m.watchFiles(ctx)

	// the directory is watched so that editors replacing the file are seen
	m.addDirToWatcher(filepath.Dir(m.inventoryPath), "inventory directory")
	return nil
}

// addDirToWatcher adds a directory to the watcher, logging failures
func (m *Monitor) addDirToWatcher(dir, description string) {
	if _, err := os.Stat(dir); err != nil {
		m.logger.Warn().Err(err).Str("path", dir).Msgf("Cannot watch %s", description)
		return
	}
	if err := m.watcher.Add(dir); err != nil {
		m.logger.Warn().Err(err).Str("path", dir).Msgf("Failed to watch %s", description)
	}
}

func (m *Monitor) watchFiles(ctx context.Context) {
	absInventory, _ := filepath.Abs(m.inventoryPath)

	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			absEvent, _ := filepath.Abs(event.Name)
			if absEvent != absInventory {
				continue
			}
			m.logger.Info().Str("file", event.Name).Str("op", event.Op.String()).Msg("Inventory modified")
			m.Trigger("inventory changed")

		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("File watcher error")

		case <-ctx.Done():
			return
		}
	}
}

// LastReport returns the report of the latest finished run
func (m *Monitor) LastReport() (runner.Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.last == nil {
		return runner.Report{}, false
	}
	return *m.last, true
}

// Runs returns how many runs finished
func (m *Monitor) Runs() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runs
}

// GetLogs returns recent log entries
func (m *Monitor) GetLogs() []logs.Entry {
	if m.logManager == nil {
		return nil
	}
	return m.logManager.GetLogs()
}
