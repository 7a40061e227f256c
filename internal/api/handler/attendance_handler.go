package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/atakdmr/student-attendance/internal/dto"
	"github.com/atakdmr/student-attendance/internal/service"
	"github.com/atakdmr/student-attendance/pkg/response"
)

// AttendanceHandler 考勤记录 HTTP 处理器
type AttendanceHandler struct {
	attendanceSvc service.AttendanceService
}

// NewAttendanceHandler 创建 AttendanceHandler
func NewAttendanceHandler(attendanceSvc service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendanceSvc: attendanceSvc}
}

// MarkOne 标记单个学生
// PUT /api/v1/sessions/:id/records/:student_id
func (h *AttendanceHandler) MarkOne(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id", 21001)
	if !ok {
		return
	}
	studentID, ok := pathUUID(c, "student_id", 21001)
	if !ok {
		return
	}

	var req dto.MarkOneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 21001, err)
		return
	}

	markedBy, ok := MustGetUserID(c)
	if !ok {
		return
	}

	mark := dto.StudentMark{
		StudentID:   studentID,
		Status:      req.Status,
		LateMinutes: req.LateMinutes,
		Note:        req.Note,
		Version:     req.Version,
	}
	record, err := h.attendanceSvc.MarkOne(c.Request.Context(), sessionID, mark, markedBy)
	if err != nil {
		handleAttendanceError(c, err)
		return
	}

	response.OK(c, record)
}

// MarkBulk 批量标记，整批原子生效
// PUT /api/v1/sessions/:id/records
func (h *AttendanceHandler) MarkBulk(c *gin.Context) {
	sessionID, ok := pathUUID(c, "id", 21001)
	if !ok {
		return
	}

	var req dto.MarkBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, 21001, err)
		return
	}

	markedBy, ok := MustGetUserID(c)
	if !ok {
		return
	}

	if err := h.attendanceSvc.MarkBulk(c.Request.Context(), sessionID, req.Marks, markedBy); err != nil {
		handleAttendanceError(c, err)
		return
	}

	response.OK(c, dto.MarkBulkResponse{Applied: len(req.Marks)})
}

func handleAttendanceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		response.NotFound(c, 21101, "考勤会话不存在")
	case errors.Is(err, service.ErrSessionFinalized):
		response.Forbidden(c, 21102, "会话已定稿，不可再修改考勤")
	case errors.Is(err, service.ErrConcurrencyConflict):
		response.Conflict(c, 21103, err.Error())
	case errors.Is(err, service.ErrStudentNotInGroup):
		response.BadRequest(c, 21104, err.Error())
	case errors.Is(err, service.ErrInvalidMark):
		response.BadRequest(c, 21105, err.Error())
	case errors.Is(err, service.ErrEmptyBatch):
		response.BadRequest(c, 21106, "批量标记不能为空")
	case errors.Is(err, service.ErrDuplicateStudent):
		response.BadRequest(c, 21107, err.Error())
	default:
		response.InternalError(c)
	}
}
