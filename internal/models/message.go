package models

import "time"

// Message types.
const (
	MessageText     = "TEXT"
	MessagePhoto    = "PHOTO"
	MessageVideo    = "VIDEO"
	MessageDocument = "DOCUMENT"
	MessageVoice    = "VOICE"
	MessageSticker  = "STICKER"
	MessageLocation = "LOCATION"
)

// Message is one entry in a dialog. Messages are immutable once created
// and ordered by CreatedAt ascending.
type Message struct {
	ID          string `gorm:"primaryKey;size:36"`
	DialogID    string `gorm:"size:36;not null;index"`
	Text        string `gorm:"type:text"`
	FromUser    bool   `gorm:"not null"` // true: customer, false: staff
	SenderID    string `gorm:"size:36"`  // staff user id for outbound messages
	MessageType string `gorm:"size:16;default:TEXT"`
	FileURL     string `gorm:"size:512"`
	FileName    string `gorm:"size:256"`
	FileSize    int64
	MimeType    string    `gorm:"size:128"`
	CreatedAt   time.Time `gorm:"index"`

	Dialog *Dialog `gorm:"foreignKey:DialogID"`
}
