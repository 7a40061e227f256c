package handler

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atakdmr/student-attendance/internal/dto"
	"github.com/atakdmr/student-attendance/internal/service"
	"github.com/atakdmr/student-attendance/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ScheduleHandler 周课表、导出与日历订阅
type ScheduleHandler struct {
	sessionSvc  service.SessionService
	exportSvc   service.ExportService
	calendarSvc service.CalendarService
	loc         *time.Location
	now         func() time.Time
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(sessionSvc service.SessionService, exportSvc service.ExportService, calendarSvc service.CalendarService, loc *time.Location) *ScheduleHandler {
	return &ScheduleHandler{
		sessionSvc:  sessionSvc,
		exportSvc:   exportSvc,
		calendarSvc: calendarSvc,
		loc:         loc,
		now:         time.Now,
	}
}

// weekDate 解析 ?date=，缺省为今天
func (h *ScheduleHandler) weekDate(c *gin.Context) (time.Time, bool) {
	var q dto.WeekQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 22001, "日期格式应为 YYYY-MM-DD")
		return time.Time{}, false
	}
	date, err := parseDate(q.Date, h.loc)
	if err != nil {
		response.BadRequest(c, 22001, "日期格式应为 YYYY-MM-DD")
		return time.Time{}, false
	}
	if date == nil {
		return h.now().In(h.loc), true
	}
	return *date, true
}

// GetWeekOverview 一周课程总览
// GET /api/v1/schedule/week?date=2025-03-05
func (h *ScheduleHandler) GetWeekOverview(c *gin.Context) {
	date, ok := h.weekDate(c)
	if !ok {
		return
	}
	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	week, err := h.sessionSvc.GetWeekOverview(c.Request.Context(), date, callerID, role)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	response.OK(c, week)
}

// ExportWeekOverview 导出周课表
// GET /api/v1/schedule/week/export?date=2025-03-05
func (h *ScheduleHandler) ExportWeekOverview(c *gin.Context) {
	date, ok := h.weekDate(c)
	if !ok {
		return
	}
	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportWeekOverview(c.Request.Context(), date, callerID, role)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ExportCalendar 课程 iCalendar 订阅
// GET /api/v1/lessons/calendar.ics
func (h *ScheduleHandler) ExportCalendar(c *gin.Context) {
	callerID, role, ok := mustGetCaller(c)
	if !ok {
		return
	}

	data, err := h.calendarSvc.ExportTeacherCalendar(c.Request.Context(), callerID, role)
	if err != nil {
		handleScheduleError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="lessons.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", data)
}

func handleScheduleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExportNoLessons):
		response.NotFound(c, 22101, "本周没有课程")
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.InternalError(c)
	}
}
