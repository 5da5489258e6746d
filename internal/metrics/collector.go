package metrics

import (
	"context"
	"time"

	"folio/internal/logging"
)

// StatsProvider supplies library counts to the collector.
type StatsProvider interface {
	LibraryStats(ctx context.Context) (Stats, error)
}

// DBMetricsUpdater refreshes connection pool gauges.
type DBMetricsUpdater interface {
	UpdateDBMetrics()
}

// Stats holds catalog counts.
type Stats struct {
	LiveAssets     int `json:"liveAssets"`
	TrashedAssets  int `json:"trashedAssets"`
	LiveFolders    int `json:"liveFolders"`
	TrashedFolders int `json:"trashedFolders"`
	Tags           int `json:"tags"`
}

// Collector periodically refreshes the library gauges.
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
}

// NewCollector creates a collector polling provider every interval.
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop ends the loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.LibraryStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	LibraryAssetsTotal.WithLabelValues("live").Set(float64(stats.LiveAssets))
	LibraryAssetsTotal.WithLabelValues("trashed").Set(float64(stats.TrashedAssets))
	LibraryFoldersTotal.WithLabelValues("live").Set(float64(stats.LiveFolders))
	LibraryFoldersTotal.WithLabelValues("trashed").Set(float64(stats.TrashedFolders))
	LibraryTagsTotal.Set(float64(stats.Tags))

	if u, ok := c.statsProvider.(DBMetricsUpdater); ok {
		u.UpdateDBMetrics()
	}

	logging.Debug("Metrics collected: assets=%d (+%d trashed), folders=%d (+%d trashed), tags=%d",
		stats.LiveAssets, stats.TrashedAssets, stats.LiveFolders, stats.TrashedFolders, stats.Tags)
}
