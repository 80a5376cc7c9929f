package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/domain/entity"
)

// TemplateList is one page of templates with the overall count
type TemplateList struct {
	Templates []*entity.Template `json:"templates"`
	Total     int                `json:"total"`
}

func (h *Handlers) bindTemplate(c *gin.Context) (service.TemplateInput, bool) {
	var in service.TemplateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid template body: "+err.Error())
		return in, false
	}
	if in.CreatedBy == "" {
		in.CreatedBy = c.GetHeader(ActorHeader)
	}
	return in, true
}

// CreateTemplate handles POST /api/v1/templates
func (h *Handlers) CreateTemplate(c *gin.Context) {
	in, valid := h.bindTemplate(c)
	if !valid {
		return
	}
	tpl, err := h.templates.CreateTemplate(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "Create template", err)
		return
	}
	ok(c, http.StatusCreated, tpl)
}

// GetTemplate handles GET /api/v1/templates/:id
func (h *Handlers) GetTemplate(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	tpl, err := h.templates.GetTemplate(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "Get template", err)
		return
	}
	ok(c, http.StatusOK, tpl)
}

// ListTemplates handles GET /api/v1/templates
func (h *Handlers) ListTemplates(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	q.normalize()

	templates, total, err := h.templates.ListTemplates(c.Request.Context(), q.Limit, q.Offset)
	if err != nil {
		h.fail(c, "List templates", err)
		return
	}
	if templates == nil {
		templates = []*entity.Template{}
	}
	ok(c, http.StatusOK, TemplateList{Templates: templates, Total: total})
}

// UpdateTemplate handles PUT /api/v1/templates/:id. The response carries
// the new version when the old one was still in use.
func (h *Handlers) UpdateTemplate(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	in, valid := h.bindTemplate(c)
	if !valid {
		return
	}
	tpl, err := h.templates.UpdateTemplate(c.Request.Context(), id, in)
	if err != nil {
		h.fail(c, "Update template", err)
		return
	}
	ok(c, http.StatusOK, tpl)
}

// DeleteTemplate handles DELETE /api/v1/templates/:id
func (h *Handlers) DeleteTemplate(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	if err := h.templates.DeleteTemplate(c.Request.Context(), id); err != nil {
		h.fail(c, "Delete template", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"id": id})
}
