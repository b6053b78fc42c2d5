package status

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
)

func outcome(name string, status model.OutcomeStatus, at time.Time) model.IngestionOutcome {
	return model.IngestionOutcome{
		Name:        name,
		Source:      model.SourceUpload,
		Status:      status,
		CompletedAt: at,
	}
}

func TestTrackerRecordAndGet(t *testing.T) {
	tr, err := NewTracker(10)
	require.NoError(t, err)

	now := time.Now()
	tr.Record(outcome("a.json", model.OutcomeFailed, now))
	tr.Record(outcome("a.json", model.OutcomeSucceeded, now.Add(time.Second)))

	got, ok := tr.Get("a.json")
	require.True(t, ok)
	assert.Equal(t, model.OutcomeSucceeded, got.Status)
	assert.Equal(t, 1, tr.Len())

	_, ok = tr.Get("missing.json")
	assert.False(t, ok)
}

func TestTrackerListNewestFirst(t *testing.T) {
	tr, err := NewTracker(10)
	require.NoError(t, err)

	base := time.Now()
	tr.Record(outcome("old.json", model.OutcomeSucceeded, base))
	tr.Record(outcome("new.json", model.OutcomeSucceeded, base.Add(2*time.Second)))
	tr.Record(outcome("mid.json", model.OutcomeFailed, base.Add(time.Second)))

	list := tr.List()
	require.Len(t, list, 3)
	assert.Equal(t, "new.json", list[0].Name)
	assert.Equal(t, "mid.json", list[1].Name)
	assert.Equal(t, "old.json", list[2].Name)
}

func TestTrackerEvictsOldest(t *testing.T) {
	tr, err := NewTracker(3)
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i < 5; i++ {
		tr.Record(outcome(fmt.Sprintf("f%d.json", i), model.OutcomeSucceeded, base.Add(time.Duration(i)*time.Second)))
	}

	assert.Equal(t, 3, tr.Len())
	_, ok := tr.Get("f0.json")
	assert.False(t, ok)
	_, ok = tr.Get("f4.json")
	assert.True(t, ok)
}

func TestNewTrackerDefaultCapacity(t *testing.T) {
	tr, err := NewTracker(0)
	require.NoError(t, err)
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.List())
}
