package engine

import (
	"sort"
	"sync"

	"marketgate/internal/model/enum"
)

// PositionKey identifies a net position.
type PositionKey struct {
	StrategyID string `json:"strategy_id"`
	Symbol     string `json:"symbol"`
}

// PositionEntry is one row of a snapshot.
type PositionEntry struct {
	PositionKey
	Qty int64 `json:"qty"`
}

// Positions tracks net quantity per (strategy, symbol) from fills.
type Positions struct {
	mu        sync.RWMutex
	positions map[PositionKey]int64
}

// NewPositions creates an empty book.
func NewPositions() *Positions {
	return &Positions{positions: make(map[PositionKey]int64)}
}

// ApplyFill updates the position and returns the new quantity.
func (p *Positions) ApplyFill(key PositionKey, action enum.Action, qty int64) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := applySide(p.positions[key], action, qty)
	p.positions[key] = next
	return next
}

// Position returns the current quantity of key.
func (p *Positions) Position(key PositionKey) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.positions[key]
}

// Count returns the number of tracked positions.
func (p *Positions) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.positions)
}

// Snapshot returns all positions ordered by strategy then symbol.
func (p *Positions) Snapshot() []PositionEntry {
	p.mu.RLock()
	out := make([]PositionEntry, 0, len(p.positions))
	for k, v := range p.positions {
		out = append(out, PositionEntry{PositionKey: k, Qty: v})
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StrategyID != out[j].StrategyID {
			return out[i].StrategyID < out[j].StrategyID
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}
