// Package feed implements the infinite-scroll product feed: a small state
// machine that turns scroll signals and a filter into append-only page fetches.
package feed

import (
	"fmt"

	"github.com/StorefrontFeed/internal/domain"
)

// Phase is the state of a feed. It replaces the loose in-flight/exhausted flag pair.
type Phase int

const (
	Idle Phase = iota
	Fetching
	Exhausted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText renders the phase by name in JSON snapshots.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*p = Idle
	case "fetching":
		*p = Fetching
	case "exhausted":
		*p = Exhausted
	default:
		return fmt.Errorf("unknown phase %q", b)
	}
	return nil
}

// Ticket stamps an outgoing page request with the generation and cursor it
// was issued for. A result is applied only if its ticket is still current.
type Ticket struct {
	Generation uint64
	Filter     domain.Filter
	Page       int
}

// State is the FeedState of one feed. It is not safe for concurrent use;
// Controller serializes access to it.
type State struct {
	Filter domain.Filter
	Items  []domain.Product
	Cursor int
	Phase  Phase
	Err    error

	generation uint64
	// loaded is the number of pages applied for the current generation;
	// it is also the index of the next page to request.
	loaded int
}

func (s *State) InFlight() bool  { return s.Phase == Fetching }
func (s *State) Exhausted() bool { return s.Phase == Exhausted }

// Current returns the ticket of the active request, if any.
func (s *State) Current() (Ticket, bool) {
	if s.Phase != Fetching {
		return Ticket{}, false
	}
	return s.ticket(), true
}

func (s *State) ticket() Ticket {
	return Ticket{Generation: s.generation, Filter: s.Filter, Page: s.Cursor}
}

// Initialize resets the feed for filter and starts the page 0 request.
// Any request of the previous generation becomes stale.
func (s *State) Initialize(filter domain.Filter) Ticket {
	s.generation++
	s.Filter = filter
	s.Items = nil
	s.Cursor = 0
	s.loaded = 0
	s.Err = nil
	s.Phase = Fetching
	return s.ticket()
}

// ScrollNearBottom requests the next page unless a request is in flight or
// the feed is exhausted.
func (s *State) ScrollNearBottom() (Ticket, bool) {
	if s.Phase != Idle || s.generation == 0 {
		return Ticket{}, false
	}
	s.Cursor = s.loaded
	s.Err = nil
	s.Phase = Fetching
	return s.ticket(), true
}

// Stale reports whether t no longer matches the active request.
func (s *State) Stale(t Ticket) bool {
	return s.Phase != Fetching || t.Generation != s.generation || t.Page != s.Cursor || t.Filter != s.Filter
}

// Succeed applies a fetched page. Page 0 replaces the items, any later page
// appends. A page shorter than pageSize marks the feed exhausted.
// It returns false and leaves the state untouched when t is stale.
func (s *State) Succeed(t Ticket, products []domain.Product, pageSize int) bool {
	if s.Stale(t) {
		return false
	}
	if t.Page == 0 {
		s.Items = append([]domain.Product(nil), products...)
	} else {
		s.Items = append(s.Items, products...)
	}
	s.loaded = t.Page + 1
	s.Err = nil
	if len(products) == 0 || len(products) < pageSize {
		s.Phase = Exhausted
	} else {
		s.Phase = Idle
	}
	return true
}

// Fail records a failed request. Items, cursor and exhaustion are kept; the
// next scroll requests the first page not yet loaded, which is the failed one.
// It returns false and leaves the state untouched when t is stale.
func (s *State) Fail(t Ticket, err error) bool {
	if s.Stale(t) {
		return false
	}
	s.Phase = Idle
	s.Err = err
	return true
}
