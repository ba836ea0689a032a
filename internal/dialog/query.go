package dialog

import (
	"fmt"

	"github.com/gramchat/gramchat/internal/models"
	"gorm.io/gorm"
)

// List filters.
const (
	FilterMine       = "mine"
	FilterUnassigned = "unassigned"
	FilterAll        = "all"
)

// ListOpts holds query parameters for listing dialogs.
type ListOpts struct {
	BotID  string
	Status string
	Filter string // mine, unassigned, all (owners/admin only)
	Limit  int
	Offset int
}

// List returns dialogs visible to the actor, newest activity first, with the
// last message preloaded. Managers requesting "all" are downgraded to the
// union of mine and unassigned.
func List(db *gorm.DB, actor *models.User, opts ListOpts) ([]models.Dialog, error) {
	if actor == nil {
		return nil, fmt.Errorf("dialog: actor is required")
	}

	q := db.Model(&models.Dialog{})

	// Tenant scoping.
	switch actor.Role {
	case models.RoleAdmin:
		if opts.BotID != "" {
			q = q.Where("bot_id = ?", opts.BotID)
		}
	case models.RoleOwner:
		ownedSub := db.Model(&models.Bot{}).Select("id").Where("owner_id = ?", actor.ID)
		q = q.Where("bot_id IN (?)", ownedSub)
		if opts.BotID != "" {
			q = q.Where("bot_id = ?", opts.BotID)
		}
	case models.RoleManager:
		q = q.Where("bot_id = ?", actor.BotID)
	default:
		return nil, ErrNotPermitted
	}

	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}

	filter := opts.Filter
	if actor.Role == models.RoleManager && (filter == "" || filter == FilterAll) {
		filter = ""
		q = q.Where("assigned_to_id = ? OR assigned_to_id IS NULL", actor.ID)
	}
	switch filter {
	case "":
	case FilterMine:
		q = q.Where("assigned_to_id = ?", actor.ID)
	case FilterUnassigned:
		q = q.Where("assigned_to_id IS NULL")
	case FilterAll:
	default:
		return nil, fmt.Errorf("dialog: unknown filter %q", opts.Filter)
	}

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var dialogs []models.Dialog
	if err := q.Order("last_message_at DESC").Find(&dialogs).Error; err != nil {
		return nil, fmt.Errorf("dialog: list: %w", err)
	}
	if err := attachLastMessages(db, dialogs); err != nil {
		return nil, err
	}
	return dialogs, nil
}

// attachLastMessages loads only the newest message of each listed dialog and
// stores it as the single Messages element. A Preload would pull the full
// thread since a per-dialog LIMIT does not partition by parent in GORM.
func attachLastMessages(db *gorm.DB, dialogs []models.Dialog) error {
	if len(dialogs) == 0 {
		return nil
	}
	ids := make([]string, len(dialogs))
	for i := range dialogs {
		ids[i] = dialogs[i].ID
	}

	var last []models.Message
	err := db.
		Where("dialog_id IN ?", ids).
		Where("created_at = (SELECT MAX(m2.created_at) FROM messages m2 WHERE m2.dialog_id = messages.dialog_id)").
		Order("created_at DESC, id").
		Find(&last).Error
	if err != nil {
		return fmt.Errorf("dialog: last messages: %w", err)
	}

	byDialog := make(map[string]models.Message, len(last))
	for _, m := range last {
		// Equal timestamps tie; keep the first row per dialog.
		if _, ok := byDialog[m.DialogID]; !ok {
			byDialog[m.DialogID] = m
		}
	}
	for i := range dialogs {
		if m, ok := byDialog[dialogs[i].ID]; ok {
			dialogs[i].Messages = []models.Message{m}
		}
	}
	return nil
}

// GetWithMessages returns a dialog and its full message history in
// chronological order. The returned dialog snapshot is the authoritative
// merge point for clients.
func GetWithMessages(db *gorm.DB, dialogID string, actor *models.User) (*models.Dialog, []models.Message, error) {
	if actor == nil {
		return nil, nil, fmt.Errorf("dialog: actor is required")
	}
	d, err := getDialog(db, dialogID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := canAccess(db, actor, d.BotID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrNotPermitted
	}

	var msgs []models.Message
	if err := db.Where("dialog_id = ?", dialogID).Order("created_at ASC").Find(&msgs).Error; err != nil {
		return nil, nil, fmt.Errorf("dialog: messages %s: %w", dialogID, err)
	}
	return d, msgs, nil
}
