// Package janitor runs scheduled housekeeping over the dialog store:
// assignments held by deactivated staff are released back into the pool,
// and stale unassigned dialogs trigger a reminder to staff channels.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/gramchat/gramchat/internal/events"
	"github.com/gramchat/gramchat/internal/models"
	"github.com/gramchat/gramchat/internal/notify"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Opts holds configuration for the janitor.
type Opts struct {
	DB         *gorm.DB
	Schedule   string        // 5-field cron expression
	StaleAfter time.Duration // unassigned dialogs older than this get a reminder
	Fanout     *notify.Fanout
	Pub        *events.Publisher
	Logger     *zap.Logger
}

// Janitor sweeps the dialog store on a cron schedule.
type Janitor struct {
	db         *gorm.DB
	schedule   string
	staleAfter time.Duration
	fanout     *notify.Fanout
	pub        *events.Publisher
	logger     *zap.Logger
}

// New creates a Janitor.
func New(opts Opts) (*Janitor, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("janitor: db is required")
	}
	if opts.Schedule != "" {
		if _, err := cronParser.Parse(opts.Schedule); err != nil {
			return nil, fmt.Errorf("janitor: parse schedule %q: %w", opts.Schedule, err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		db:         opts.DB,
		schedule:   opts.Schedule,
		staleAfter: opts.StaleAfter,
		fanout:     opts.Fanout,
		pub:        opts.Pub,
		logger:     logger,
	}, nil
}

// Run blocks, sweeping on the configured schedule until ctx is cancelled.
// With no schedule configured it returns immediately.
func (j *Janitor) Run(ctx context.Context) error {
	if j.schedule == "" {
		return nil
	}

	d := nextCronDuration(j.schedule)
	if d <= 0 {
		d = time.Minute
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			if err := j.Sweep(ctx); err != nil {
				j.logger.Error("sweep failed", zap.Error(err))
			}
			if d := nextCronDuration(j.schedule); d > 0 {
				timer.Reset(d)
			} else {
				timer.Reset(time.Minute)
			}
		}
	}
}

// Sweep runs one housekeeping pass.
func (j *Janitor) Sweep(ctx context.Context) error {
	released, err := j.releaseOrphaned(ctx)
	if err != nil {
		return err
	}
	if released > 0 {
		j.logger.Info("released orphaned assignments", zap.Int("count", released))
	}

	if j.staleAfter > 0 {
		if err := j.remindStale(ctx); err != nil {
			return err
		}
	}
	return nil
}

// releaseOrphaned clears assignments held by deactivated staff so the
// dialogs return to the unassigned pool.
func (j *Janitor) releaseOrphaned(ctx context.Context) (int, error) {
	var orphaned []models.Dialog
	err := j.db.WithContext(ctx).
		Joins("JOIN users ON users.id = dialogs.assigned_to_id").
		Where("users.is_active = ?", false).
		Where("dialogs.status <> ?", models.DialogClosed).
		Find(&orphaned).Error
	if err != nil {
		return 0, fmt.Errorf("janitor: find orphaned: %w", err)
	}
	if len(orphaned) == 0 {
		return 0, nil
	}

	released := 0
	for i := range orphaned {
		d := &orphaned[i]
		result := j.db.WithContext(ctx).Model(&models.Dialog{}).
			Where("id = ? AND assigned_to_id = ?", d.ID, *d.AssignedToID).
			Updates(map[string]interface{}{
				"assigned_to_id": nil,
				"assigned_at":    nil,
			})
		if result.Error != nil {
			return 0, fmt.Errorf("janitor: release %s: %w", d.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			// Reassigned between the select and the update; leave it.
			continue
		}
		released++
		if err := j.pub.Publish(ctx, events.KeyAssignmentChanged, events.AssignmentChanged{
			DialogID:   d.ID,
			BotID:      d.BotID,
			AssignedTo: nil,
		}); err != nil {
			j.logger.Warn("event publish failed", zap.String("dialog_id", d.ID), zap.Error(err))
		}
	}

	if released > 0 {
		j.fanout.Post(ctx, notify.Event{
			Title:    "Dialogs returned to the pool",
			Body:     fmt.Sprintf("%d dialog(s) were held by deactivated staff and are unassigned again.", released),
			Severity: notify.SeverityWarning,
		})
	}
	return released, nil
}

// remindStale posts a reminder when unassigned dialogs have waited past the
// threshold.
func (j *Janitor) remindStale(ctx context.Context) error {
	cutoff := time.Now().Add(-j.staleAfter)
	var count int64
	err := j.db.WithContext(ctx).Model(&models.Dialog{}).
		Where("assigned_to_id IS NULL").
		Where("status <> ?", models.DialogClosed).
		Where("last_message_at < ?", cutoff).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("janitor: count stale: %w", err)
	}
	if count == 0 {
		return nil
	}

	j.fanout.Post(ctx, notify.Event{
		Title:    "Unanswered dialogs waiting",
		Body:     fmt.Sprintf("%d dialog(s) have had no reply for over %s.", count, j.staleAfter),
		Severity: notify.SeverityWarning,
	})
	return nil
}
