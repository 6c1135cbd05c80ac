package crm

import (
	"time"

	"github.com/crm/backend/internal/domain/shared"
)

// CasePriority ranks support cases
type CasePriority string

const (
	CasePriorityLow      CasePriority = "low"
	CasePriorityMedium   CasePriority = "medium"
	CasePriorityHigh     CasePriority = "high"
	CasePriorityCritical CasePriority = "critical"
)

// IsValid returns true if the priority is known
func (p CasePriority) IsValid() bool {
	switch p {
	case CasePriorityLow, CasePriorityMedium, CasePriorityHigh, CasePriorityCritical:
		return true
	}
	return false
}

// CaseStatus is the lifecycle state of a support case
type CaseStatus string

const (
	CaseStatusOpen       CaseStatus = "open"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusResolved   CaseStatus = "resolved"
	CaseStatusClosed     CaseStatus = "closed"
)

// SupportCase is a customer-reported issue
type SupportCase struct {
	ID           uint         `gorm:"primaryKey"`
	CustomerID   uint         `gorm:"not null;index"`
	Subject      string       `gorm:"size:200;not null"`
	Description  string       `gorm:"type:text"`
	Priority     CasePriority `gorm:"size:20;not null;default:'medium'"`
	Status       CaseStatus   `gorm:"size:20;not null;default:'open'"`
	AssignedToID string       `gorm:"size:191;index"`
}

// TableName returns the table name for GORM
func (SupportCase) TableName() string {
	return "support_cases"
}

// Assign routes the case to an identity user and starts work on it
func (c *SupportCase) Assign(userID string) error {
	if c.Status == CaseStatusClosed {
		return shared.ErrInvalidState
	}
	c.AssignedToID = userID
	if c.Status == CaseStatusOpen {
		c.Status = CaseStatusInProgress
	}
	return nil
}

// Resolve marks the case resolved
func (c *SupportCase) Resolve() error {
	if c.Status == CaseStatusClosed || c.Status == CaseStatusResolved {
		return shared.ErrInvalidState
	}
	c.Status = CaseStatusResolved
	return nil
}

// Close closes a resolved case
func (c *SupportCase) Close() error {
	if c.Status != CaseStatusResolved {
		return shared.ErrInvalidState
	}
	c.Status = CaseStatusClosed
	return nil
}

// TaskStatus is the state of a to-do task
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusDone      TaskStatus = "done"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// TodoTask is a follow-up item for a user, optionally about a customer
type TodoTask struct {
	ID           uint       `gorm:"primaryKey"`
	Title        string     `gorm:"size:200;not null"`
	Description  string     `gorm:"type:text"`
	DueDate      *time.Time `gorm:"index"`
	Status       TaskStatus `gorm:"size:20;not null;default:'pending'"`
	AssignedToID string     `gorm:"size:191;index"`
	CustomerID   *uint      `gorm:"index"`
}

// TableName returns the table name for GORM
func (TodoTask) TableName() string {
	return "todo_tasks"
}

// IsOverdue reports whether a pending task is past its due date at now
func (t TodoTask) IsOverdue(now time.Time) bool {
	return t.Status == TaskStatusPending && t.DueDate != nil && now.After(*t.DueDate)
}

// Complete marks the task done
func (t *TodoTask) Complete() error {
	if t.Status != TaskStatusPending {
		return shared.ErrInvalidState
	}
	t.Status = TaskStatusDone
	return nil
}

// Reward is a loyalty award granted to a customer
type Reward struct {
	ID         uint      `gorm:"primaryKey"`
	CustomerID uint      `gorm:"not null;index"`
	Points     int       `gorm:"not null"`
	Reason     string    `gorm:"size:255"`
	AwardedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (Reward) TableName() string {
	return "rewards"
}

// NewReward grants points to a customer
func NewReward(customerID uint, points int, reason string, at time.Time) (*Reward, error) {
	if points <= 0 {
		return nil, shared.NewDomainError("INVALID_POINTS", "Reward points must be positive")
	}
	return &Reward{
		CustomerID: customerID,
		Points:     points,
		Reason:     reason,
		AwardedAt:  at.UTC(),
	}, nil
}

// TotalPoints sums the points of the given rewards
func TotalPoints(rewards []Reward) int {
	total := 0
	for _, r := range rewards {
		total += r.Points
	}
	return total
}
