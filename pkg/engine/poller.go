package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nyarudb/nyarudb2/pkg/log"
)

// defaultPollInterval matches the background compaction loop's own
// period, so stats and compaction state age together.
const defaultPollInterval = 60 * time.Second

// StatsPoller periodically refreshes every open collection's stats
// snapshot and registers each newly-seen collection's stats.Engine
// with a Prometheus registerer, so a host process gets current
// nyaru_stats_* gauges even for collections that see reads but no
// writes for a while.
type StatsPoller struct {
	engine   *Engine
	registry prometheus.Registerer
	interval time.Duration

	registered map[string]bool
	stopCh     chan struct{}
}

// NewStatsPoller creates a poller over e, registering each
// collection's stats.Engine with reg as it's discovered. reg may be
// prometheus.DefaultRegisterer.
func NewStatsPoller(e *Engine, reg prometheus.Registerer) *StatsPoller {
	return &StatsPoller{
		engine:     e,
		registry:   reg,
		interval:   defaultPollInterval,
		registered: make(map[string]bool),
		stopCh:     make(chan struct{}),
	}
}

// Start begins the periodic refresh in a background goroutine.
func (p *StatsPoller) Start() {
	ticker := time.NewTicker(p.interval)
	go func() {
		p.tick()
		for {
			select {
			case <-ticker.C:
				p.tick()
			case <-p.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop ends the periodic refresh.
func (p *StatsPoller) Stop() {
	close(p.stopCh)
}

func (p *StatsPoller) tick() {
	p.engine.mu.RLock()
	collections := make([]*Collection, 0, len(p.engine.collections))
	for name, c := range p.engine.collections {
		if p.registry != nil && !p.registered[name] {
			if err := p.registry.Register(c.StatsCollector()); err != nil {
				log.WithCollection(name).Warn().Err(err).Msg("failed to register stats collector")
			}
			p.registered[name] = true
		}
		collections = append(collections, c)
	}
	p.engine.mu.RUnlock()

	for _, c := range collections {
		c.RefreshStats()
	}
}
