package state

import (
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

const shardCount = 32

// Config controls alert-episode throttling
type Config struct {
	EpisodeWindow time.Duration `yaml:"episode_window" default:"5m" validate:"min=1s"`
	MaxSuppressed int           `yaml:"max_suppressed" default:"100" validate:"min=1"`
}

func DefaultConfig() Config {
	return Config{EpisodeWindow: 5 * time.Minute, MaxSuppressed: 100}
}

// Store holds per-symbol positions and alert episodes in memory. Access
// for one symbol is serialized through its shard; nothing survives a
// restart.
type Store struct {
	config Config
	shards [shardCount]*shard
	now    func() time.Time
}

type shard struct {
	mu        sync.Mutex
	positions map[string]*Position
	episodes  map[EpisodeKey]*AlertEpisode
}

type Option func(*Store)

// WithClock injects the wall clock used for GC and default timestamps
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// NewStore creates an empty store
func NewStore(config Config, opts ...Option) *Store {
	def := DefaultConfig()
	if config.EpisodeWindow <= 0 {
		config.EpisodeWindow = def.EpisodeWindow
	}
	if config.MaxSuppressed <= 0 {
		config.MaxSuppressed = def.MaxSuppressed
	}
	s := &Store{config: config, now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{
			positions: make(map[string]*Position),
			episodes:  make(map[EpisodeKey]*AlertEpisode),
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Window() time.Duration { return s.config.EpisodeWindow }

func (s *Store) shardFor(symbol string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return s.shards[h.Sum32()%shardCount]
}

// Apply runs fn with exclusive access to symbol's state. Read-modify-write
// sequences such as "evaluate exit, then maybe enter" must go through
// Apply so two scans racing on the same symbol cannot lose an update.
func (s *Store) Apply(symbol string, fn func(tx *Tx) error) error {
	sh := s.shardFor(symbol)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return fn(&Tx{store: s, shard: sh, symbol: symbol})
}

// Enter opens a position on symbol; a no-op when one is already open
func (s *Store) Enter(symbol string, dir market.Direction, price float64, at time.Time) Transition {
	var tr Transition
	_ = s.Apply(symbol, func(tx *Tx) error {
		tr = tx.Enter(dir, price, at)
		return nil
	})
	return tr
}

// Exit closes the open position on symbol; a no-op when FLAT
func (s *Store) Exit(symbol string, price float64, at time.Time, reason string) Transition {
	var tr Transition
	_ = s.Apply(symbol, func(tx *Tx) error {
		tr = tx.Exit(price, at, reason)
		return nil
	})
	return tr
}

// Position returns the current position for symbol
func (s *Store) Position(symbol string) Position {
	var p Position
	_ = s.Apply(symbol, func(tx *Tx) error {
		p = tx.Position()
		return nil
	})
	return p
}

// Alert records a signal of signalType for symbol and decides whether it
// is emitted or throttled
func (s *Store) Alert(symbol, signalType string, at time.Time) AlertDecision {
	var d AlertDecision
	_ = s.Apply(symbol, func(tx *Tx) error {
		d = tx.Alert(signalType, at)
		return nil
	})
	return d
}

// GC drops episodes whose window opened more than twice the window ago and
// returns how many were removed
func (s *Store) GC() int {
	cutoff := s.now().Add(-2 * s.config.EpisodeWindow)
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for key, ep := range sh.episodes {
			if ep.WindowStart.Before(cutoff) {
				delete(sh.episodes, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		log.Debug().Int("removed", removed).Msg("Garbage-collected alert episodes")
	}
	return removed
}

// OpenPositions returns a copy of every OPEN position, sorted by symbol
func (s *Store) OpenPositions() []Position {
	var out []Position
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, p := range sh.positions {
			if p.Status == Open {
				out = append(out, *p)
			}
		}
		sh.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ActiveEpisodes returns a copy of every episode still inside its window
func (s *Store) ActiveEpisodes() []AlertEpisode {
	now := s.now()
	var out []AlertEpisode
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, ep := range sh.episodes {
			if now.Sub(ep.WindowStart) < s.config.EpisodeWindow {
				out = append(out, ep.clone())
			}
		}
		sh.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Symbol != out[j].Symbol {
			return out[i].Symbol < out[j].Symbol
		}
		return out[i].Type < out[j].Type
	})
	return out
}
