// internal/catalog/snapshot.go
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"dealerdesk/internal/common/logger"
	"dealerdesk/internal/common/validation"
	"dealerdesk/internal/models"
)

// Snapshot holds the current inventory in memory and refreshes it on a
// cron schedule. Readers get a consistent slice; a refresh swaps the
// whole snapshot atomically and never blocks reads.
type Snapshot struct {
	source  Source
	current atomic.Value // []models.CarListing
	cron    *cron.Cron
	log     logger.Logger
}

func NewSnapshot(source Source, log logger.Logger) *Snapshot {
	s := &Snapshot{source: source, log: log}
	s.current.Store([]models.CarListing(nil))
	return s
}

// Snapshot returns the current inventory. The slice must not be
// mutated by callers.
func (s *Snapshot) Snapshot() []models.CarListing {
	return s.current.Load().([]models.CarListing)
}

// Refresh reloads the inventory from the source. A failed load keeps
// the previous snapshot so a storage blip never empties the catalog.
func (s *Snapshot) Refresh(ctx context.Context) error {
	cars, err := s.source.Load(ctx)
	if err != nil {
		s.log.WithError(err).Warn("catalog refresh failed, keeping previous snapshot", nil)
		return err
	}
	s.current.Store(cars)
	s.log.Info("catalog refreshed", map[string]interface{}{"listings": len(cars)})
	return nil
}

// StartRefreshing loads once now and then on the given cron spec
// (e.g. "@every 15m"). Stop with Stop.
func (s *Snapshot) StartRefreshing(ctx context.Context, spec string) error {
	if err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("initial catalog load: %w", err)
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = s.Refresh(refreshCtx)
	})
	if err != nil {
		return fmt.Errorf("schedule catalog refresh: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the refresh schedule.
func (s *Snapshot) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// seedListing mirrors CarListing with an optional availability flag so
// seeds that omit it default to in stock.
type seedListing struct {
	models.CarListing
	AvailableFlag *bool `json:"available"`
}

// LoadSeedFile reads and validates a JSON seed file of listings.
func LoadSeedFile(path string) ([]models.CarListing, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	if err := validation.ValidateCarSeed(doc); err != nil {
		return nil, err
	}

	var seeds []seedListing
	if err := json.Unmarshal(doc, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	out := make([]models.CarListing, 0, len(seeds))
	for _, s := range seeds {
		c := s.CarListing
		c.Available = s.AvailableFlag == nil || *s.AvailableFlag
		out = append(out, c)
	}
	return out, nil
}
