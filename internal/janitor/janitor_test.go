package janitor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/models"
	"github.com/gramchat/gramchat/internal/notify"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openJanitorTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Bot{}, &models.Dialog{}, &models.Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// recordingNotifier captures fanout events for assertions.
type recordingNotifier struct {
	events []notify.Event
}

func (r *recordingNotifier) Post(ctx context.Context, evt notify.Event) error {
	r.events = append(r.events, evt)
	return nil
}

func seedAssignedDialog(t *testing.T, db *gorm.DB, active bool) (models.User, models.Dialog) {
	t.Helper()
	u := models.User{
		ID:       uuid.NewString(),
		Username: uuid.NewString()[:8],
		Role:     models.RoleManager,
		IsActive: active,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	now := time.Now()
	d := models.Dialog{
		ID:             uuid.NewString(),
		BotID:          uuid.NewString(),
		TelegramChatID: now.UnixNano(),
		Status:         models.DialogActive,
		AssignedToID:   &u.ID,
		AssignedAt:     &now,
		LastMessageAt:  now,
	}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("seed dialog: %v", err)
	}
	return u, d
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	db := openJanitorTestDB(t)
	if _, err := New(Opts{DB: db, Schedule: "not a cron expr"}); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := New(Opts{Schedule: "* * * * *"}); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestSweep_ReleasesOrphanedAssignments(t *testing.T) {
	db := openJanitorTestDB(t)
	_, orphanedDialog := seedAssignedDialog(t, db, false)
	_, keptDialog := seedAssignedDialog(t, db, true)

	rec := &recordingNotifier{}
	j, err := New(Opts{DB: db, Fanout: notify.NewFanout(nil, rec)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	var got models.Dialog
	db.Where("id = ?", orphanedDialog.ID).First(&got)
	if got.AssignedToID != nil {
		t.Error("orphaned dialog still assigned")
	}
	if got.AssignedAt != nil {
		t.Error("assignedAt not cleared")
	}

	db.Where("id = ?", keptDialog.ID).First(&got)
	if got.AssignedToID == nil {
		t.Error("active assignment was released")
	}

	if len(rec.events) != 1 {
		t.Fatalf("notifications = %d, want 1", len(rec.events))
	}
}

func TestSweep_CountsOnlyReleasedRows(t *testing.T) {
	db := openJanitorTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	_, d1 := seedAssignedDialog(t, db, false)
	_, d2 := seedAssignedDialog(t, db, false)
	claimer := models.User{
		ID:       uuid.NewString(),
		Username: uuid.NewString()[:8],
		Role:     models.RoleManager,
		IsActive: true,
	}
	if err := db.Create(&claimer).Error; err != nil {
		t.Fatalf("seed claimer: %v", err)
	}

	// A claim lands after the sweep picked its candidates but before the
	// first guarded update runs. The guard skips that dialog, so it must
	// not show up in the reported count.
	hijacked := false
	err = db.Callback().Update().Before("gorm:update").Register("claim_in_between", func(tx *gorm.DB) {
		if hijacked {
			return
		}
		hijacked = true
		now := time.Now()
		tx.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE dialogs SET assigned_to_id = ?, assigned_at = ? WHERE id = ?",
				claimer.ID, now, d1.ID)
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	rec := &recordingNotifier{}
	j, err := New(Opts{DB: db, Fanout: notify.NewFanout(nil, rec)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	released, err := j.releaseOrphaned(context.Background())
	if err != nil {
		t.Fatalf("releaseOrphaned: %v", err)
	}
	if released != 1 {
		t.Errorf("released = %d, want 1", released)
	}

	var got models.Dialog
	db.Where("id = ?", d1.ID).First(&got)
	if got.AssignedToID == nil || *got.AssignedToID != claimer.ID {
		t.Errorf("claimed dialog assignee = %v, want %s", got.AssignedToID, claimer.ID)
	}
	db.Where("id = ?", d2.ID).First(&got)
	if got.AssignedToID != nil {
		t.Error("orphaned dialog still assigned")
	}

	if len(rec.events) != 1 {
		t.Fatalf("notifications = %d, want 1", len(rec.events))
	}
	if !strings.Contains(rec.events[0].Body, "1 dialog(s)") {
		t.Errorf("notification body = %q, want count of 1", rec.events[0].Body)
	}
}

func TestSweep_SkipsClosedDialogs(t *testing.T) {
	db := openJanitorTestDB(t)
	u, d := seedAssignedDialog(t, db, false)
	reason := models.CloseDeal
	now := time.Now()
	db.Model(&models.Dialog{}).Where("id = ?", d.ID).Updates(map[string]interface{}{
		"status": models.DialogClosed, "close_reason": reason, "closed_at": now,
		"assigned_to_id": nil, "assigned_at": nil,
	})
	_ = u

	j, _ := New(Opts{DB: db})
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	var got models.Dialog
	db.Where("id = ?", d.ID).First(&got)
	if got.Status != models.DialogClosed {
		t.Errorf("status = %q", got.Status)
	}
}

func TestSweep_RemindsAboutStaleDialogs(t *testing.T) {
	db := openJanitorTestDB(t)
	stale := models.Dialog{
		ID:             uuid.NewString(),
		BotID:          uuid.NewString(),
		TelegramChatID: 1,
		Status:         models.DialogNew,
		LastMessageAt:  time.Now().Add(-2 * time.Hour),
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := &recordingNotifier{}
	j, _ := New(Opts{DB: db, StaleAfter: 30 * time.Minute, Fanout: notify.NewFanout(nil, rec)})
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("notifications = %d, want 1", len(rec.events))
	}
	if rec.events[0].Severity != notify.SeverityWarning {
		t.Errorf("severity = %q", rec.events[0].Severity)
	}
}

func TestSweep_QuietWhenNothingToDo(t *testing.T) {
	db := openJanitorTestDB(t)
	rec := &recordingNotifier{}
	j, _ := New(Opts{DB: db, StaleAfter: 30 * time.Minute, Fanout: notify.NewFanout(nil, rec)})
	if err := j.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(rec.events) != 0 {
		t.Errorf("notifications = %d, want 0", len(rec.events))
	}
}

func TestRun_NoScheduleReturns(t *testing.T) {
	db := openJanitorTestDB(t)
	j, _ := New(Opts{DB: db})
	done := make(chan error, 1)
	go func() { done <- j.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return without a schedule")
	}
}

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("* * * * *"); d <= 0 || d > time.Minute {
		t.Errorf("every-minute duration = %v", d)
	}
	if d := nextCronDuration("bad"); d != 0 {
		t.Errorf("bad expression duration = %v", d)
	}
}
