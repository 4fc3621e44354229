package types

import (
	"context"
	"time"
)

// Status is the row-level status shared by all persisted entities. It is
// distinct from domain lifecycle state (an active subscription and a
// canceled subscription are both StatusPublished rows).
type Status string

const (
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
	StatusArchived  Status = "archived"
)

// BaseModel carries the audit and scoping fields every persisted entity
// embeds. PracticeID scopes all rows to a single practice.
type BaseModel struct {
	PracticeID string    `json:"practice_id"`
	Status     Status    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	CreatedBy  string    `json:"created_by"`
	UpdatedBy  string    `json:"updated_by"`
}

// GetDefaultBaseModel returns a BaseModel populated from the request context.
func GetDefaultBaseModel(ctx context.Context) BaseModel {
	now := time.Now().UTC()
	userID := GetUserID(ctx)
	return BaseModel{
		PracticeID: GetPracticeID(ctx),
		Status:     StatusPublished,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  userID,
		UpdatedBy:  userID,
	}
}
