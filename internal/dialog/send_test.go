package dialog

import (
	"errors"
	"testing"
	"time"

	"github.com/gramchat/gramchat/internal/models"
)

func TestSendMessage_MissingArgs(t *testing.T) {
	if _, err := SendMessage(nil, "", &models.User{}, "hi", nil); err == nil {
		t.Fatal("expected error for empty dialogID")
	}
	if _, err := SendMessage(nil, "d-1", nil, "hi", nil); err == nil {
		t.Fatal("expected error for nil actor")
	}
	if _, err := SendMessage(nil, "d-1", &models.User{}, "", nil); err == nil {
		t.Fatal("expected error for empty message")
	}
}

func TestSendMessage_ByAssignee(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)
	before := d.LastMessageAt

	msg, err := SendMessage(db, d.ID, tn.Manager, "On my way", nil)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.FromUser {
		t.Error("FromUser = true for staff message")
	}
	if msg.SenderID != tn.Manager.ID {
		t.Errorf("SenderID = %q, want %q", msg.SenderID, tn.Manager.ID)
	}
	if msg.MessageType != models.MessageText {
		t.Errorf("MessageType = %q, want TEXT", msg.MessageType)
	}

	var reloaded models.Dialog
	db.Where("id = ?", d.ID).First(&reloaded)
	if !reloaded.LastMessageAt.After(before) {
		t.Error("LastMessageAt not bumped")
	}
}

func TestSendMessage_ManagerBlockedOnForeignAssignment(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	_, err := SendMessage(db, d.ID, tn.Second, "mine now", nil)
	if !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want ErrNotPermitted", err)
	}
	var count int64
	db.Model(&models.Message{}).Where("dialog_id = ?", d.ID).Count(&count)
	if count != 0 {
		t.Errorf("message rows = %d, want 0", count)
	}
}

func TestSendMessage_OwnerOverride(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	if _, err := SendMessage(db, d.ID, tn.Owner, "owner stepping in", nil); err != nil {
		t.Fatalf("owner send: %v", err)
	}
}

func TestSendMessage_UnassignedDialog(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogNew, nil)

	if _, err := SendMessage(db, d.ID, tn.Manager, "hello", nil); err != nil {
		t.Fatalf("send to unassigned: %v", err)
	}
}

func TestSendMessage_WithAttachment(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	att := &Attachment{
		Type:     models.MessageDocument,
		FileURL:  "/uploads/invoice.pdf",
		FileName: "invoice.pdf",
		FileSize: 1024,
		MimeType: "application/pdf",
	}
	msg, err := SendMessage(db, d.ID, tn.Manager, "", att)
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.MessageType != models.MessageDocument {
		t.Errorf("MessageType = %q, want DOCUMENT", msg.MessageType)
	}
	if msg.FileName != "invoice.pdf" || msg.MimeType != "application/pdf" {
		t.Errorf("attachment fields = %q %q", msg.FileName, msg.MimeType)
	}
}

func TestSendMessage_MessagesStayOrdered(t *testing.T) {
	db := openDialogTestDB(t)
	tn := seedTenant(t, db)
	d := seedDialog(t, db, tn.Bot.ID, models.DialogActive, tn.Manager)

	for _, text := range []string{"one", "two", "three"} {
		if _, err := SendMessage(db, d.ID, tn.Manager, text, nil); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	_, msgs, err := GetWithMessages(db, d.ID, tn.Manager)
	if err != nil {
		t.Fatalf("GetWithMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Text != want {
			t.Errorf("msgs[%d].Text = %q, want %q", i, msgs[i].Text, want)
		}
	}
}
