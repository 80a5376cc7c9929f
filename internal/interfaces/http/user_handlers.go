package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// CreateUser handles POST /api/v1/users
func (h *Handlers) CreateUser(c *gin.Context) {
	var user entity.User
	if err := c.ShouldBindJSON(&user); err != nil {
		badRequest(c, "invalid user body: "+err.Error())
		return
	}
	if err := h.users.CreateUser(c.Request.Context(), &user); err != nil {
		h.fail(c, "Create user", err)
		return
	}
	ok(c, http.StatusCreated, user)
}

// GetUser handles GET /api/v1/users/:id
func (h *Handlers) GetUser(c *gin.Context) {
	user, err := h.users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Get user", err)
		return
	}
	ok(c, http.StatusOK, user)
}

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, "List users", err)
		return
	}
	ok(c, http.StatusOK, users)
}

// ListApprovers handles GET /api/v1/approvers
func (h *Handlers) ListApprovers(c *gin.Context) {
	users, err := h.users.ListApprovers(c.Request.Context())
	if err != nil {
		h.fail(c, "List approvers", err)
		return
	}
	ok(c, http.StatusOK, users)
}
