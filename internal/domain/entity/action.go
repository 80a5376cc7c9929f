package entity

import "time"

// ApprovalAction is the audit record written alongside every decision
type ApprovalAction struct {
	ID         int64     `json:"id"`
	RequestID  int64     `json:"request_id"`
	ApproverID string    `json:"approver_id"`
	Action     string    `json:"action"`
	Comment    string    `json:"comment,omitempty"`
	Step       int       `json:"step"`
	Timestamp  time.Time `json:"timestamp"`
}
