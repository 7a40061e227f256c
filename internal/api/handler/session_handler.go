package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atakdmr/student-attendance/internal/dto"
	"github.com/atakdmr/student-attendance/internal/service"
	"github.com/atakdmr/student-attendance/pkg/response"
)

// SessionHandler 考勤会话 HTTP 处理器
type SessionHandler struct {
	sessionSvc service.SessionService
	loc        *time.Location
}

// NewSessionHandler 创建 SessionHandler
func NewSessionHandler(sessionSvc service.SessionService, loc *time.Location) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc, loc: loc}
}

// OpenSession 打开（或取回）课程在某天的会话
// POST /api/v1/sessions/open
func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 20001, err)
		return
	}
	date, err := parseDate(req.Date, h.loc)
	if err != nil {
		response.BadRequest(c, 20001, "日期格式应为 YYYY-MM-DD")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	session, err := h.sessionSvc.OpenSession(c.Request.Context(), req.LessonID, date, callerID, role)
	if err != nil {
		handleSessionError(c, err)
		return
	}

	response.OK(c, session)
}

// ListOpenSessions 未定稿的会话列表
// GET /api/v1/sessions?group_id=&teacher_id=&day_of_week=&lesson_title=
func (h *SessionHandler) ListOpenSessions(c *gin.Context) {
	var query dto.SessionListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		bindFailed(c, 20001, err)
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	sessions, err := h.sessionSvc.ListOpenSessions(c.Request.Context(), query, callerID, role)
	if err != nil {
		handleSessionError(c, err)
		return
	}

	response.OKList(c, sessions, len(sessions))
}

// GetSessionRoster 会话点名表
// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSessionRoster(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id", 20001)
	if !ok {
		return
	}

	roster, err := h.sessionSvc.GetSessionRoster(c.Request.Context(), sessionID)
	if err != nil {
		handleSessionError(c, err)
		return
	}

	response.OK(c, roster)
}

// FinalizeSession 定稿
// POST /api/v1/sessions/:id/finalize
func (h *SessionHandler) FinalizeSession(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id", 20001)
	if !ok {
		return
	}
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.sessionSvc.FinalizeSession(c.Request.Context(), sessionID, callerID); err != nil {
		handleSessionError(c, err)
		return
	}

	response.OK(c, nil)
}

// ReanchorSession 把会话挪到新的日期，旧记录清空，返回新的点名表
// POST /api/v1/sessions/:id/reanchor
func (h *SessionHandler) ReanchorSession(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id", 20001)
	if !ok {
		return
	}
	var req dto.ReanchorSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 20001, err)
		return
	}
	date, err := parseDate(req.Date, h.loc)
	if err != nil || date == nil {
		response.BadRequest(c, 20001, "日期格式应为 YYYY-MM-DD")
		return
	}

	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	if _, err := h.sessionSvc.ReanchorSession(c.Request.Context(), sessionID, *date, callerID, role); err != nil {
		handleSessionError(c, err)
		return
	}

	roster, err := h.sessionSvc.GetSessionRoster(c.Request.Context(), sessionID)
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, roster)
}

// ListArchivedRecords 重新锚定前归档的记录
// GET /api/v1/sessions/:id/archives
func (h *SessionHandler) ListArchivedRecords(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id", 20001)
	if !ok {
		return
	}

	records, err := h.sessionSvc.ListArchivedRecords(c.Request.Context(), sessionID)
	if err != nil {
		handleSessionError(c, err)
		return
	}

	response.OKList(c, records, len(records))
}

func handleSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 20101, "考勤会话不存在")
	case errors.Is(err, service.ErrLessonNotFound):
		response.NotFound(c, 20102, "课程不存在")
	case errors.Is(err, service.ErrLessonInactive):
		response.BadRequest(c, 20103, "课程已停用")
	case errors.Is(err, service.ErrNotLessonTeacher):
		response.Forbidden(c, 20104, "只能操作自己任课的课程")
	case errors.Is(err, service.ErrSessionAlreadyFinalized):
		response.Conflict(c, 20105, "会话已定稿")
	case errors.Is(err, service.ErrWeekHasOpenSession):
		response.Conflict(c, 20106, "目标周已存在该课程的开放会话")
	case errors.Is(err, service.ErrInvalidTimeRange):
		response.BadRequest(c, 20107, "课程时间配置无效")
	default:
		response.InternalError(c)
	}
}
