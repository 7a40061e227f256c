package handler

import (
	"time"

	"github.com/atakdmr/student-attendance/internal/service"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Session    *SessionHandler
	Attendance *AttendanceHandler
	Schedule   *ScheduleHandler
}

// NewHandler 创建 Handler 聚合
// loc 用于解释请求中不带时间的日期参数
func NewHandler(svc *service.Service, loc *time.Location) *Handler {
	return &Handler{
		Session:    NewSessionHandler(svc.Session, loc),
		Attendance: NewAttendanceHandler(svc.Attendance),
		Schedule:   NewScheduleHandler(svc.Session, svc.Export, svc.Calendar, loc),
	}
}
