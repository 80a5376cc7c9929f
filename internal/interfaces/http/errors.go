package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-flow/internal/application/ledger"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/application/workflow"
	"github.com/garyjia/approval-flow/internal/domain/graph"
)

// statusFor maps an application error onto an HTTP status
func statusFor(err error) int {
	switch {
	case graph.IsValidationError(err),
		errors.Is(err, workflow.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidDecision):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrApproverMismatch):
		return http.StatusForbidden
	case errors.Is(err, port.ErrNotFound),
		errors.Is(err, ledger.ErrStepNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrAlreadyTerminal),
		errors.Is(err, workflow.ErrNodeMismatch),
		errors.Is(err, workflow.ErrInstanceBusy),
		errors.Is(err, workflow.ErrConcurrentUpdate),
		errors.Is(err, workflow.ErrTemplateInactive),
		errors.Is(err, ledger.ErrIndexConflict),
		errors.Is(err, ledger.ErrAlreadyDecided),
		errors.Is(err, service.ErrTemplateInUse),
		errors.Is(err, port.ErrDuplicate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err in the response envelope. Internal errors are logged and
// their details withheld from the client.
func (h *Handlers) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err, "path", c.Request.URL.Path)
		msg = "internal error"
	}
	if status == http.StatusConflict && errors.Is(err, workflow.ErrInstanceBusy) {
		c.Header("Retry-After", "1")
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}
