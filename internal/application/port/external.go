package port

import (
	"context"
	"io"

	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// MessageSender delivers a plain-text message to a chat user
type MessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
}

// EventPublisher forwards serialized domain events to an external broker
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body []byte, headers map[string]interface{}) error
	Close() error
}

// ReportExporter renders requests and their statistics as a document
type ReportExporter interface {
	ExportRequests(w io.Writer, requests []*entity.ApprovalRequest, stats *entity.RequestStats, categories []*entity.CategoryStats) error
	ContentType() string
	FileExtension() string
}
