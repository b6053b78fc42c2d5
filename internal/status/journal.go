package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/capitalize-ai/vcon-datasets/internal/model"
	"github.com/capitalize-ai/vcon-datasets/pkg/logger"
)

var outcomesBucket = []byte("ingestions")

// Journal persists the latest outcome per file name in a BoltDB file so the
// ingestion history survives restarts.
type Journal struct {
	db     *bolt.DB
	logger *logger.Logger
}

// OpenJournal opens (or creates) the journal at path.
func OpenJournal(path string, log *logger.Logger) (*Journal, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(outcomesBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}

	return &Journal{db: db, logger: log.Named("journal")}, nil
}

// Record writes outcome, replacing any earlier outcome for the same name.
// Failures are logged; losing history never fails an ingestion.
func (j *Journal) Record(outcome model.IngestionOutcome) {
	enc, err := json.Marshal(outcome)
	if err != nil {
		j.logger.Warn("failed to encode outcome", zap.String("name", outcome.Name), zap.Error(err))
		return
	}

	err = j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(outcomesBucket).Put([]byte(outcome.Name), enc)
	})
	if err != nil {
		j.logger.Warn("failed to persist outcome", zap.String("name", outcome.Name), zap.Error(err))
	}
}

// Load returns every journaled outcome, oldest first.
func (j *Journal) Load() ([]model.IngestionOutcome, error) {
	var out []model.IngestionOutcome
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(outcomesBucket).ForEach(func(k, v []byte) error {
			var o model.IngestionOutcome
			if err := json.Unmarshal(v, &o); err != nil {
				// Skip malformed entries.
				return nil
			}
			out = append(out, o)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}

	sort.SliceStable(out, func(i, k int) bool {
		return out[i].CompletedAt.Before(out[k].CompletedAt)
	})
	return out, nil
}

// Restore replays the journal into t so recent history is visible after a restart.
func (j *Journal) Restore(t *Tracker) (int, error) {
	outcomes, err := j.Load()
	if err != nil {
		return 0, err
	}
	for _, o := range outcomes {
		t.Record(o)
	}
	return len(outcomes), nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
