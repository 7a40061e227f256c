package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/atakdmr/student-attendance/config"
	"github.com/atakdmr/student-attendance/internal/repository"
	"github.com/atakdmr/student-attendance/pkg/jwt"
)

const roleAdmin = jwt.RoleAdmin

// Service 所有 Service 的聚合入口
type Service struct {
	Session    SessionService
	Attendance AttendanceService
	Calendar   CalendarService
	Export     ExportService
}

// NewService 创建 Service 聚合
// loc 为考勤时区，不带时间的日期与周窗口都按它解释
func NewService(cfg *config.Config, repo *repository.Repository, loc *time.Location, logger *zap.Logger) *Service {
	sessions := NewSessionService(repo, &cfg.Attendance, loc, logger)
	return &Service{
		Session:    sessions,
		Attendance: NewAttendanceService(repo, loc, logger),
		Calendar:   NewCalendarService(repo, loc, logger),
		Export:     NewExportService(sessions, logger),
	}
}
