package state

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/csd2000/Trade-Flow-sub002/internal/domain/market"
)

// Tx is exclusive access to one symbol's state inside Store.Apply. It must
// not escape the callback.
type Tx struct {
	store  *Store
	shard  *shard
	symbol string
}

// Position returns the symbol's position, FLAT when never opened
func (tx *Tx) Position() Position {
	if p, ok := tx.shard.positions[tx.symbol]; ok {
		return *p
	}
	return Position{Symbol: tx.symbol, Status: Flat}
}

// Enter moves FLAT to OPEN. Entering while OPEN changes nothing.
func (tx *Tx) Enter(dir market.Direction, price float64, at time.Time) Transition {
	cur := tx.Position()
	if cur.Status == Open || dir == market.Neutral {
		return Transition{Symbol: tx.symbol, From: cur.Status, To: cur.Status, Position: cur}
	}
	p := &Position{
		Symbol:     tx.symbol,
		Status:     Open,
		Direction:  dir,
		EntryPrice: price,
		EntryTime:  at,
	}
	tx.shard.positions[tx.symbol] = p
	log.Debug().Str("symbol", tx.symbol).Str("direction", string(dir)).Float64("price", price).Msg("Position opened")
	return Transition{Symbol: tx.symbol, From: Flat, To: Open, Applied: true, Position: *p}
}

// Exit moves OPEN to FLAT. Exiting while FLAT changes nothing.
func (tx *Tx) Exit(price float64, at time.Time, reason string) Transition {
	cur := tx.Position()
	if cur.Status != Open {
		return Transition{Symbol: tx.symbol, From: cur.Status, To: cur.Status, Position: cur}
	}
	closed := cur
	closed.Status = Flat
	closed.ExitPrice = price
	closed.ExitTime = at
	closed.ExitReason = reason
	tx.shard.positions[tx.symbol] = &closed
	log.Debug().Str("symbol", tx.symbol).Str("reason", reason).Float64("price", price).Msg("Position closed")
	return Transition{Symbol: tx.symbol, From: Open, To: Flat, Applied: true, Position: closed}
}

// Alert records a signalType alert at time at. The first alert in a window
// opens the episode and is emitted; later ones inside the window are
// appended and throttled.
func (tx *Tx) Alert(signalType string, at time.Time) AlertDecision {
	key := EpisodeKey{Symbol: tx.symbol, Type: signalType}
	window := tx.store.config.EpisodeWindow

	ep, ok := tx.shard.episodes[key]
	if ok && at.Sub(ep.WindowStart) < window && !at.Before(ep.WindowStart) {
		ep.LastSeen = at
		ep.SuppressedCount++
		ep.Suppressed = append(ep.Suppressed, at)
		if over := len(ep.Suppressed) - tx.store.config.MaxSuppressed; over > 0 {
			ep.Suppressed = append([]time.Time(nil), ep.Suppressed[over:]...)
		}
		return AlertDecision{Emit: false, Episode: ep.clone()}
	}

	ep = &AlertEpisode{Symbol: tx.symbol, Type: signalType, WindowStart: at, LastSeen: at}
	tx.shard.episodes[key] = ep
	return AlertDecision{Emit: true, Episode: ep.clone()}
}
