package dialog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDialogTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Bot{}, &models.Dialog{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role, botID string) *models.User {
	t.Helper()
	u := models.User{
		ID:       uuid.NewString(),
		Username: "u-" + uuid.NewString()[:8],
		Role:     role,
		BotID:    botID,
		IsActive: true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &u
}

func seedBot(t *testing.T, db *gorm.DB, ownerID string) *models.Bot {
	t.Helper()
	b := models.Bot{
		ID:       uuid.NewString(),
		Title:    "Test Shop",
		Token:    "123:token",
		OwnerID:  ownerID,
		IsActive: true,
	}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed bot: %v", err)
	}
	return &b
}

func seedDialog(t *testing.T, db *gorm.DB, botID, status string, assignee *models.User) *models.Dialog {
	t.Helper()
	d := models.Dialog{
		ID:             uuid.NewString(),
		BotID:          botID,
		TelegramChatID: time.Now().UnixNano(),
		CustomerName:   "Customer",
		Status:         status,
		LastMessageAt:  time.Now(),
	}
	if assignee != nil {
		now := time.Now()
		d.AssignedToID = &assignee.ID
		d.AssignedAt = &now
	}
	if status == models.DialogClosed {
		reason := models.CloseDeal
		now := time.Now()
		d.CloseReason = &reason
		d.ClosedAt = &now
	}
	if err := db.Create(&d).Error; err != nil {
		t.Fatalf("seed dialog: %v", err)
	}
	return &d
}

// tenant bundles a bot with its owner and two managers for tests.
type tenant struct {
	Bot     *models.Bot
	Owner   *models.User
	Manager *models.User
	Second  *models.User
}

func seedTenant(t *testing.T, db *gorm.DB) tenant {
	t.Helper()
	owner := seedUser(t, db, models.RoleOwner, "")
	bot := seedBot(t, db, owner.ID)
	m1 := seedUser(t, db, models.RoleManager, bot.ID)
	m2 := seedUser(t, db, models.RoleManager, bot.ID)
	return tenant{Bot: bot, Owner: owner, Manager: m1, Second: m2}
}

// checkInvariants asserts the cross-field dialog invariants on a fresh read.
func checkInvariants(t *testing.T, db *gorm.DB, dialogID string) *models.Dialog {
	t.Helper()
	var d models.Dialog
	if err := db.Where("id = ?", dialogID).First(&d).Error; err != nil {
		t.Fatalf("reload dialog: %v", err)
	}
	if (d.CloseReason != nil) != (d.Status == models.DialogClosed) {
		t.Errorf("close_reason set = %v but status = %q", d.CloseReason != nil, d.Status)
	}
	if (d.AssignedAt != nil) != (d.AssignedToID != nil) {
		t.Errorf("assigned_at set = %v but assigned_to_id set = %v", d.AssignedAt != nil, d.AssignedToID != nil)
	}
	return &d
}
