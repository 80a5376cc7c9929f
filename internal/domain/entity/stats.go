package entity

// RequestStats counts live requests by status
type RequestStats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Approved   int `json:"approved"`
	Rejected   int `json:"rejected"`
}

// Add counts n requests with the given status
func (s *RequestStats) Add(status string, n int) {
	s.Total += n
	switch status {
	case RequestStatusPending:
		s.Pending += n
	case RequestStatusInProgress:
		s.InProgress += n
	case RequestStatusApproved:
		s.Approved += n
	case RequestStatusRejected:
		s.Rejected += n
	}
}

// CategoryStats is the per-category breakdown of live requests
type CategoryStats struct {
	Category string `json:"category"`
	RequestStats
}
