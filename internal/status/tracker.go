// Package status keeps the most recent ingestion outcomes in memory.
package status

import (
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
)

// DefaultCapacity is the number of outcomes kept when none is configured.
const DefaultCapacity = 512

// Tracker records the latest outcome per file name, evicting the least
// recently updated names once capacity is reached.
type Tracker struct {
	outcomes *lru.Cache[string, model.IngestionOutcome]
}

// NewTracker creates a tracker holding up to capacity outcomes.
func NewTracker(capacity int) (*Tracker, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, model.IngestionOutcome](capacity)
	if err != nil {
		return nil, err
	}
	return &Tracker{outcomes: cache}, nil
}

// Record stores outcome, replacing any earlier outcome for the same name.
func (t *Tracker) Record(outcome model.IngestionOutcome) {
	t.outcomes.Add(outcome.Name, outcome)
}

// Get returns the latest outcome recorded for name.
func (t *Tracker) Get(name string) (model.IngestionOutcome, bool) {
	return t.outcomes.Peek(name)
}

// List returns the tracked outcomes, newest first.
func (t *Tracker) List() []model.IngestionOutcome {
	out := make([]model.IngestionOutcome, 0, t.outcomes.Len())
	for _, key := range t.outcomes.Keys() {
		if o, ok := t.outcomes.Peek(key); ok {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	return out
}

// Len returns the number of tracked outcomes.
func (t *Tracker) Len() int {
	return t.outcomes.Len()
}
