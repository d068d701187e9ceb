package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
	"github.com/ThiagoRGoveia/section3-compliance/internal/parser"
)

// ErrUnsupportedEntry is recorded on entries whose type has no replay handler.
var ErrUnsupportedEntry = errors.New("unsupported offline entry type")

type ReplayResult struct {
	RunID   string `json:"run_id"`
	Pending int    `json:"pending"`
	Synced  int    `json:"synced"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// Replayer drains the offline queue one entry at a time. An entry is fully
// written and marked before the next one is read.
type Replayer struct {
	store database.OfflineStore
	log   *logger.Logger
	now   func() time.Time
}

func NewReplayer(store database.OfflineStore, log *logger.Logger) *Replayer {
	return &Replayer{
		store: store,
		log:   log.With("component", "offline_replayer"),
		now:   time.Now,
	}
}

// Replay processes every pending entry in creation order. Each entry is
// claimed before it is written, so concurrent runs never replay the same
// entry twice; entries another run already claimed are skipped. Entries that
// cannot be decoded or validated are marked failed and replay moves on. A
// datastore error stops the run and hands the current entry back to the
// queue for the next one.
func (r *Replayer) Replay(ctx context.Context) (ReplayResult, error) {
	result := ReplayResult{RunID: uuid.NewString()}
	log := r.log.With("run_id", result.RunID)

	entries, err := r.store.ListPendingOfflineEntries(ctx)
	if err != nil {
		return result, fmt.Errorf("listing pending offline entries: %w", err)
	}
	result.Pending = len(entries)
	log.Info("offline replay started", "pending", result.Pending)

	for i := range entries {
		if err := ctx.Err(); err != nil {
			log.Warn("offline replay interrupted", "synced", result.Synced, "failed", result.Failed)
			return result, err
		}

		entry := &entries[i]
		claimed, err := r.store.ClaimOfflineEntry(ctx, entry.ID)
		if err != nil {
			return result, err
		}
		if !claimed {
			log.Debug("offline entry claimed by another run", "entry_id", entry.ID)
			result.Skipped++
			continue
		}

		if err := r.replayEntry(ctx, log, entry, &result); err != nil {
			// The caller's ctx may be done already; the release must still land.
			if relErr := r.store.ReleaseOfflineEntry(context.WithoutCancel(ctx), entry.ID); relErr != nil {
				log.Error("failed to release offline entry", "entry_id", entry.ID, "error", relErr)
			}
			return result, err
		}
	}

	log.Info("offline replay finished", "synced", result.Synced, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

func (r *Replayer) replayEntry(ctx context.Context, log *logger.Logger, entry *models.OfflineEntry, result *ReplayResult) error {
	record, err := decode(entry)
	if err != nil {
		log.Warn("offline entry rejected", "entry_id", entry.ID, "error", err)
		if markErr := r.store.MarkOfflineEntryFailed(ctx, entry.ID, err.Error()); markErr != nil {
			return markErr
		}
		result.Failed++
		return nil
	}

	if _, err := r.store.InsertLaborHour(ctx, record); err != nil {
		return fmt.Errorf("replaying offline entry %s: %w", entry.ID, err)
	}
	if err := r.store.MarkOfflineEntrySynced(ctx, entry.ID, r.now()); err != nil {
		return err
	}
	result.Synced++
	return nil
}

func decode(entry *models.OfflineEntry) (*models.LaborHourRecord, error) {
	if entry.EntryType != models.OfflineEntryLaborHours {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEntry, entry.EntryType)
	}

	var input parser.LaborHourInput
	if err := json.Unmarshal(entry.EntryData, &input); err != nil {
		return nil, fmt.Errorf("decoding entry data: %w", err)
	}
	record, err := input.Record()
	if err != nil {
		return nil, fmt.Errorf("invalid labor hour entry: %w", err)
	}
	return record, nil
}
