package dialog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestClaim_MissingArgs(t *testing.T) {
	if _, err := Claim(nil, "", &models.User{}); err == nil {
		t.Fatal("expected error for empty dialogID")
	}
	if _, err := Claim(nil, "d-1", nil); err == nil {
		t.Fatal("expected error for nil actor")
	}
}

func TestClaim_NewDialog(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogNew, nil)

	got, err := Claim(db, d.ID, tn.Manager)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if got.Status != models.DialogActive {
		t.Errorf("Status = %q, want ACTIVE", got.Status)
	}
	if got.AssignedToID == nil || *got.AssignedToID != tn.Manager.ID {
		t.Errorf("AssignedToID = %v, want %s", got.AssignedToID, tn.Manager.ID)
	}
	if got.AssignedAt == nil {
		t.Error("AssignedAt is nil after claim")
	}
	checkInvariants(t, db, d.ID)
}

func TestClaim_LoserGetsAlreadyAssigned(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogNew, nil)

	if _, err := Claim(db, d.ID, tn.Manager); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	_, err := Claim(db, d.ID, tn.Second)
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("second claim err = %v, want ErrAlreadyAssigned", err)
	}

	got := checkInvariants(t, db, d.ID)
	if *got.AssignedToID != tn.Manager.ID {
		t.Errorf("assignee = %s, want first claimer %s", *got.AssignedToID, tn.Manager.ID)
	}
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	// File-backed db so both goroutines share state; immediate transactions
	// plus a busy timeout serialize the writers instead of failing fast.
	dsn := filepath.Join(t.TempDir(), "claims.db") + "?_txlock=immediate&_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Bot{}, &models.Dialog{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogNew, nil)

	start := make(chan struct{})
	results := make(chan error, 2)
	for _, actor := range []*models.User{tn.Manager, tn.Second} {
		actor := actor
		go func() {
			<-start
			_, err := Claim(db, d.ID, actor)
			results <- err
		}()
	}
	close(start)

	var wins, losses int
	for i := 0; i < 2; i++ {
		switch err := <-results; {
		case err == nil:
			wins++
		case errors.Is(err, ErrAlreadyAssigned):
			losses++
		default:
			t.Fatalf("claim err = %v, want nil or ErrAlreadyAssigned", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("wins = %d, losses = %d, want exactly one of each", wins, losses)
	}

	got := checkInvariants(t, db, d.ID)
	if got.Status != models.DialogActive {
		t.Errorf("Status = %q, want ACTIVE", got.Status)
	}
	if got.AssignedToID == nil ||
		(*got.AssignedToID != tn.Manager.ID && *got.AssignedToID != tn.Second.ID) {
		t.Errorf("AssignedToID = %v, want one of the claimers", got.AssignedToID)
	}
}

func TestClaim_ClosedDialog(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogClosed, nil)

	_, err := Claim(db, d.ID, tn.Manager)
	if !errors.Is(err, ErrDialogClosed) {
		t.Fatalf("err = %v, want ErrDialogClosed", err)
	}
}

func TestClaim_ForeignTenant(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	other := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogNew, nil)

	_, err := Claim(db, d.ID, other.Manager)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestClaim_UnknownDialog(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)

	_, err := Claim(db, "missing", tn.Manager)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRelease_ByAssignee(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	got, err := Release(db, d.ID, tn.Manager)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got.AssignedToID != nil {
		t.Errorf("AssignedToID = %v, want nil", got.AssignedToID)
	}
	if got.Status != models.DialogActive {
		t.Errorf("Status = %q, want ACTIVE (release keeps status)", got.Status)
	}
	checkInvariants(t, db, d.ID)
}

func TestRelease_ByNonAssignee(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	_, err := Release(db, d.ID, tn.Second)
	if !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("err = %v, want ErrNotAssignee", err)
	}
	got := checkInvariants(t, db, d.ID)
	if got.AssignedToID == nil || *got.AssignedToID != tn.Manager.ID {
		t.Error("assignment changed by failed release")
	}
}

func TestRelease_Unassigned(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, nil)

	_, err := Release(db, d.ID, tn.Manager)
	if !errors.Is(err, ErrNotAssignee) {
		t.Fatalf("err = %v, want ErrNotAssignee", err)
	}
}

func TestTransfer_ByOwner(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)
	before := *d.AssignedAt

	got, err := Transfer(db, d.ID, tn.Owner, tn.Second.ID)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got.AssignedToID == nil || *got.AssignedToID != tn.Second.ID {
		t.Errorf("AssignedToID = %v, want %s", got.AssignedToID, tn.Second.ID)
	}
	if got.AssignedAt == nil || !got.AssignedAt.After(before) {
		t.Error("AssignedAt not refreshed by transfer")
	}
	checkInvariants(t, db, d.ID)
}

func TestTransfer_ByManager(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	_, err := Transfer(db, d.ID, tn.Manager, tn.Second.ID)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestTransfer_ToCurrentAssignee(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	_, err := Transfer(db, d.ID, tn.Owner, tn.Manager.ID)
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("err = %v, want ErrAlreadyAssigned", err)
	}
}

func TestTransfer_ToInactiveTarget(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	db.Model(&models.User{}).Where("id = ?", tn.Second.ID).Update("is_active", false)

	_, err := Transfer(db, d.ID, tn.Owner, tn.Second.ID)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestTransfer_ToForeignManager(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	other := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	_, err := Transfer(db, d.ID, tn.Owner, other.Manager.ID)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
}

func TestTransfer_UnassignedDialog(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogNew, nil)

	got, err := Transfer(db, d.ID, tn.Owner, tn.Manager.ID)
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if got.Status != models.DialogActive {
		t.Errorf("Status = %q, want ACTIVE", got.Status)
	}
	if got.AssignedToID == nil || *got.AssignedToID != tn.Manager.ID {
		t.Errorf("AssignedToID = %v, want %s", got.AssignedToID, tn.Manager.ID)
	}
	checkInvariants(t, db, d.ID)
}
