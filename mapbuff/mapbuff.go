// Package mapbuff enhances hostile agents that are already present on a freshly
// generated map, such as the defenders of a settlement the player travels to.
//
// Such agents never go through a spawn call the engine can compress, so the map is
// buffed once, a short delay after it appears, with a gain derived from the colony's
// threat points:
//
//	gain = (threat - ThreatMinimum) / ThreatPerStatPercentage / 100
//
// Maps that existed when the game was loaded and player home maps are never buffed.
//
//	tr := mapbuff.NewTracker(eng, settings.MapBuffConfig())
//	tr.Snapshot(loadedMapIDs...)
//	// every tick, for every map:
//	n, err := tr.Tick(ctx, tick, mapbuff.MapState{ID: id, Agents: agents, Threat: threat})
package mapbuff

import (
	"context"

	"github.com/rickchristie/spawncap"
	"github.com/rickchristie/spawncap/engine"
	"go.uber.org/zap"
)

// Default timings, in host ticks.
const (
	DefaultDelayTicks    = 60
	DefaultCheckInterval = 15
)

// Config controls the map buff.
type Config struct {
	Enabled bool

	// ThreatMinimum is the threat below which nothing is buffed.
	ThreatMinimum float64

	// ThreatPerStatPercentage is how many threat points above the minimum make one
	// percent of extra strength.
	ThreatPerStatPercentage float64

	// DelayTicks is how many ticks a new map waits before the first check.
	DelayTicks int

	// CheckInterval restricts checks to ticks divisible by it.
	CheckInterval int
}

// DefaultConfig returns the defaults: enabled, buffing from 1000 threat points upwards
// at 100 points per percent.
func DefaultConfig() Config {
	return Config{
		Enabled:                 true,
		ThreatMinimum:           1000,
		ThreatPerStatPercentage: 100,
		DelayTicks:              DefaultDelayTicks,
		CheckInterval:           DefaultCheckInterval,
	}
}

// Gain is the buff strength for threat. Zero when threat does not exceed the minimum.
func (c Config) Gain(threat float64) float64 {
	if threat <= c.ThreatMinimum || c.ThreatPerStatPercentage <= 0 {
		return 0
	}
	return (threat - c.ThreatMinimum) / c.ThreatPerStatPercentage / 100
}

// MapState is what the host reports about one map on one tick.
type MapState struct {
	ID    int
	Label string

	// PlayerHome marks the player's own settlement maps.
	PlayerHome bool

	// Agents are the spawned agents. Nil means the map's agents are not ready yet.
	Agents []spawncap.Agent

	// Threat is the colony's current threat points.
	Threat float64
}

type progress struct {
	delay int
	done  bool
}

// Tracker remembers which maps were buffed. Not safe for concurrent use; the host ticks it
// from its update loop.
type Tracker struct {
	eng *engine.Engine
	cfg Config

	startup     map[int]bool
	initialized bool
	maps        map[int]*progress
}

// NewTracker creates a Tracker.
func NewTracker(eng *engine.Engine, cfg Config) *Tracker {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 1
	}
	if cfg.DelayTicks < 0 {
		cfg.DelayTicks = 0
	}
	return &Tracker{
		eng:     eng,
		cfg:     cfg,
		startup: make(map[int]bool),
		maps:    make(map[int]*progress),
	}
}

// Snapshot records the maps that exist when the game is loaded. Only the first call has
// an effect.
func (t *Tracker) Snapshot(mapIDs ...int) {
	if t.initialized {
		return
	}
	for _, id := range mapIDs {
		t.startup[id] = true
	}
	t.initialized = true
}

// Done reports whether the map was handled.
func (t *Tracker) Done(mapID int) bool {
	p, ok := t.maps[mapID]
	return ok && p.done
}

// Tick advances the map's buff and returns how many agents were enhanced this tick. A map
// is handled at most once: on the first check after the delay on which its agents are
// ready, whether or not anything ends up buffed.
func (t *Tracker) Tick(ctx context.Context, tick int64, m MapState) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.PlayerHome || t.startup[m.ID] {
		return 0, nil
	}

	p, ok := t.maps[m.ID]
	if !ok {
		p = &progress{delay: t.cfg.DelayTicks}
		t.maps[m.ID] = p
	}
	if p.done {
		return 0, nil
	}
	if p.delay > 0 {
		p.delay--
		return 0, nil
	}
	if tick%int64(t.cfg.CheckInterval) != 0 || m.Agents == nil {
		return 0, nil
	}
	p.done = true

	if !t.cfg.Enabled {
		return 0, nil
	}
	gain := t.cfg.Gain(m.Threat)
	if gain <= 0 {
		return 0, nil
	}

	hostiles := Hostiles(m.Agents)
	res := t.eng.Buff(hostiles, gain)

	logger := t.eng.Runtime().Logger()
	logger.Info("map population buffed",
		zap.Int("map", m.ID),
		zap.Int("hostiles", len(hostiles)),
		zap.Int("enhanced", res.Enhanced),
		zap.Float64("gain", gain),
		zap.Int64("order", res.Decision.Order),
	)

	if res.Enhanced > 0 && t.eng.Policy().DisplayMessage {
		label := m.Label
		if label == "" {
			label = "map"
		}
		t.eng.Host().Notify(spawncap.Summary{
			Shape:         spawncap.ShapeMapBuff,
			Enhanced:      true,
			BaseCount:     len(hostiles),
			Cap:           len(hostiles),
			Multiplier:    res.Decision.Multiplier(),
			Slots:         res.Decision.EnhanceSlotCount,
			EnhancedTotal: res.Enhanced,
			Label:         label,
		})
	}
	return res.Enhanced, nil
}

// Hostiles returns the agents of hostile factions that are alive and standing.
func Hostiles(agents []spawncap.Agent) []spawncap.Agent {
	var out []spawncap.Agent
	for _, a := range agents {
		if a == nil {
			continue
		}
		f := a.Faction()
		if f == nil || !f.Hostile || !spawncap.Active(a) {
			continue
		}
		out = append(out, a)
	}
	return out
}
