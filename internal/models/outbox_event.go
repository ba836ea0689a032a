package models

import "time"

// OutboxEvent is a persisted copy of a published lifecycle event. Rows with
// a null PublishedAt were written while the broker was unreachable.
type OutboxEvent struct {
	ID          string `gorm:"primaryKey;size:36"`
	RoutingKey  string `gorm:"size:128;not null;index"`
	Payload     string `gorm:"type:text"`
	CreatedAt   time.Time
	PublishedAt *time.Time
}
