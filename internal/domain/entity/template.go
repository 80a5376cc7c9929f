package entity

import (
	"time"

	"github.com/garyjia/approval-flow/internal/domain/graph"
)

// Template is a reusable approval flow definition
type Template struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    string       `json:"category"`
	Graph       *graph.Graph `json:"graph"`
	Version     int          `json:"version"`
	CreatedBy   string       `json:"created_by"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Clone returns a shallow copy; the graph is immutable and shared
func (t *Template) Clone() *Template {
	c := *t
	return &c
}
