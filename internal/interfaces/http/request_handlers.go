package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/application/workflow"
)

// CreateRequestBody is the payload of POST /api/v1/requests
type CreateRequestBody struct {
	TemplateID  int64      `json:"template_id" binding:"required"`
	RequesterID string     `json:"requester_id"`
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Category    string     `json:"category"`
	DueDate     *time.Time `json:"due_date"`
	Attachments []string   `json:"attachments"`
}

// DecisionBody is the payload of POST /api/v1/requests/:id/decisions
type DecisionBody struct {
	ApproverID string `json:"approver_id"`
	NodeID     string `json:"node_id"`
	Decision   string `json:"decision" binding:"required"`
	Comment    string `json:"comment"`
}

// ListRequestsQuery holds the filters of GET /api/v1/requests
type ListRequestsQuery struct {
	PageQuery
	RequesterID string `form:"requester_id"`
	Status      string `form:"status"`
	Category    string `form:"category"`
}

func (q ListRequestsQuery) filter() port.RequestFilter {
	return port.RequestFilter{
		RequesterID: q.RequesterID,
		Status:      q.Status,
		Category:    q.Category,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
}

// CreateRequest handles POST /api/v1/requests. The X-User-ID header names
// the requester.
func (h *Handlers) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	snap, err := h.approvals.CreateRequest(c.Request.Context(), workflow.CreateInput{
		TemplateID:  body.TemplateID,
		RequesterID: actor(c, body.RequesterID),
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		Category:    body.Category,
		DueDate:     body.DueDate,
		Attachments: body.Attachments,
	})
	if err != nil {
		h.fail(c, "Create request", err)
		return
	}
	ok(c, http.StatusCreated, snap)
}

// GetRequest handles GET /api/v1/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	detail, err := h.approvals.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Get request", err)
		return
	}
	ok(c, http.StatusOK, detail)
}

// ListRequests handles GET /api/v1/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	q.normalize()

	requests, err := h.approvals.ListRequests(c.Request.Context(), q.filter())
	if err != nil {
		h.fail(c, "List requests", err)
		return
	}
	ok(c, http.StatusOK, requests)
}

// ListPending handles GET /api/v1/requests/pending for the approver named
// by X-User-ID or ?approver_id
func (h *Handlers) ListPending(c *gin.Context) {
	requests, err := h.approvals.ListPending(c.Request.Context(), actor(c, c.Query("approver_id")))
	if err != nil {
		h.fail(c, "List pending", err)
		return
	}
	ok(c, http.StatusOK, requests)
}

// SubmitDecision handles POST /api/v1/requests/:id/decisions. The X-User-ID
// header names the approver and wins over approver_id in the body.
func (h *Handlers) SubmitDecision(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	var body DecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	approver := actor(c, body.ApproverID)
	if approver == "" {
		badRequest(c, "approver is required")
		return
	}

	snap, err := h.approvals.SubmitDecision(c.Request.Context(), id, service.DecisionInput{
		ApproverID: approver,
		NodeID:     body.NodeID,
		Decision:   body.Decision,
		Comment:    body.Comment,
	})
	if err != nil {
		h.fail(c, "Submit decision", err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// DeleteRequest handles DELETE /api/v1/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	if err := h.approvals.DeleteRequest(c.Request.Context(), id); err != nil {
		h.fail(c, "Delete request", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}

// Stats handles GET /api/v1/stats
func (h *Handlers) Stats(c *gin.Context) {
	report, err := h.approvals.Stats(c.Request.Context())
	if err != nil {
		h.fail(c, "Stats", err)
		return
	}
	ok(c, http.StatusOK, report)
}

// ExportRequests handles GET /api/v1/requests/export and returns the
// workbook as an attachment. Paging parameters are ignored.
func (h *Handlers) ExportRequests(c *gin.Context) {
	var q ListRequestsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	filter := q.filter()
	filter.Limit, filter.Offset = 0, 0

	var buf bytes.Buffer
	if err := h.approvals.Export(c.Request.Context(), &buf, filter); err != nil {
		h.fail(c, "Export", err)
		return
	}

	contentType, ext := h.approvals.ExportFormat()
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="requests-%s%s"`, time.Now().UTC().Format("20060102"), ext))
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
