package entity

// Flow instance status
const (
	InstanceStatusPending    = "pending"
	InstanceStatusInProgress = "in-progress"
	InstanceStatusCompleted  = "completed"
	InstanceStatusRejected   = "rejected"
)

// Approval request status as exposed to callers.
// RequestStatusApproved is the outward name of InstanceStatusCompleted.
const (
	RequestStatusPending    = "pending"
	RequestStatusInProgress = "in-progress"
	RequestStatusApproved   = "approved"
	RequestStatusRejected   = "rejected"
)

// Step decisions
const (
	DecisionPending  = "pending"
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

// Request priority
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// RequestStatusFor projects an instance status onto the request vocabulary
func RequestStatusFor(instanceStatus string) string {
	switch instanceStatus {
	case InstanceStatusCompleted:
		return RequestStatusApproved
	case InstanceStatusRejected:
		return RequestStatusRejected
	case InstanceStatusInProgress:
		return RequestStatusInProgress
	default:
		return RequestStatusPending
	}
}

// IsValidPriority reports whether p is a known priority
func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// IsValidRequestStatus reports whether s is a known request status
func IsValidRequestStatus(s string) bool {
	switch s {
	case RequestStatusPending, RequestStatusInProgress, RequestStatusApproved, RequestStatusRejected:
		return true
	}
	return false
}
