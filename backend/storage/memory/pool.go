package memory

import (
	"time"

	"github.com/adwski/interest-chat/backend/model"
)

// Pool holds connections waiting for a partner in enqueue order.
// Pool is not safe for concurrent use, callers serialize access.
type Pool struct {
	entries []model.WaitingEntry
}

func NewPool() *Pool {
	return &Pool{}
}

// Enqueue appends the entry unless the connection is already waiting.
func (p *Pool) Enqueue(entry model.WaitingEntry) bool {
	if p.Contains(entry.ConnID) {
		return false
	}
	p.entries = append(p.entries, entry)
	return true
}

// Remove drops every entry of connID and reports whether any was present.
func (p *Pool) Remove(connID string) bool {
	kept := p.entries[:0]
	for _, e := range p.entries {
		if e.ConnID != connID {
			kept = append(kept, e)
		}
	}
	removed := len(kept) != len(p.entries)
	clear(p.entries[len(kept):])
	p.entries = kept
	return removed
}

// FindCompatible returns the oldest entry sharing at least one interest.
// The entry stays in the pool.
func (p *Pool) FindCompatible(interests model.Interests) (model.WaitingEntry, bool) {
	for _, e := range p.entries {
		for s := range interests {
			if _, ok := e.Interests[s]; ok {
				return e, true
			}
		}
	}
	return model.WaitingEntry{}, false
}

func (p *Pool) Contains(connID string) bool {
	for _, e := range p.entries {
		if e.ConnID == connID {
			return true
		}
	}
	return false
}

// Expire removes and returns entries enqueued before deadline.
func (p *Pool) Expire(deadline time.Time) []model.WaitingEntry {
	var (
		expired []model.WaitingEntry
		kept    = p.entries[:0]
	)
	for _, e := range p.entries {
		if e.Since.Before(deadline) {
			expired = append(expired, e)
		} else {
			kept = append(kept, e)
		}
	}
	clear(p.entries[len(kept):])
	p.entries = kept
	return expired
}

func (p *Pool) Len() int {
	return len(p.entries)
}
