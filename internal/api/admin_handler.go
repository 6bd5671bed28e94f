package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"resumedesk/internal/admin"
	"resumedesk/internal/api/middleware"
	"resumedesk/internal/resume"
	"resumedesk/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler 暴露只读的运营接口，供后台工具使用。
type AdminHandler struct {
	service  *admin.Service
	pageSize int
}

// NewAdminHandler 构造 AdminHandler。
func NewAdminHandler(service *admin.Service, pageSize int) *AdminHandler {
	if pageSize <= 0 {
		pageSize = admin.DefaultPageSize
	}
	return &AdminHandler{service: service, pageSize: pageSize}
}

// ListResumes 搜索记录：q 为关键字，study_status/degree 为精确过滤。
func (h *AdminHandler) ListResumes(c *gin.Context) {
	operatorID, ok := middleware.OperatorID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	q := store.Query{
		Term:           c.Query("q"),
		IncludeDeleted: queryBool(c, "include_deleted"),
		Limit:          queryInt(c, "limit", h.pageSize),
		Offset:         queryInt(c, "offset", 0),
	}
	for _, key := range []string{resume.KeyStudyStatus, resume.KeyDegree} {
		if v := c.Query(key); v != "" {
			if q.Filters == nil {
				q.Filters = make(map[string]string)
			}
			q.Filters[key] = v
		}
	}

	page, err := h.service.Search(c.Request.Context(), operatorID, q)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetResume 返回单条记录。
func (h *AdminHandler) GetResume(c *gin.Context) {
	operatorID, ok := middleware.OperatorID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid id")
		return
	}

	rec, err := h.service.View(c.Request.Context(), operatorID, userID)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetAuditTrail 返回记录的审计历史。
func (h *AdminHandler) GetAuditTrail(c *gin.Context) {
	operatorID, ok := middleware.OperatorID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "invalid id")
		return
	}

	entries, err := h.service.AuditTrail(c.Request.Context(), operatorID, userID)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

// GetStats 返回统计，date 形如 2006-01-02，默认今天。
func (h *AdminHandler) GetStats(c *gin.Context) {
	operatorID, ok := middleware.OperatorID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	asOf := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
		if err != nil {
			BadRequest(c, "invalid date")
			return
		}
		asOf = parsed
	}

	st, err := h.service.Stats(c.Request.Context(), operatorID, asOf)
	if err != nil {
		Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Export 以附件形式返回 xlsx。
func (h *AdminHandler) Export(c *gin.Context) {
	operatorID, ok := middleware.OperatorID(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var buf bytes.Buffer
	rows, err := h.service.ExportTo(c.Request.Context(), operatorID, queryBool(c, "include_deleted"), &buf)
	if err != nil {
		Fail(c, err)
		return
	}
	name := fmt.Sprintf("resumes_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Export-Rows", strconv.Itoa(rows))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
