package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atakdmr/student-attendance/config"
	"github.com/atakdmr/student-attendance/internal/api/handler"
	"github.com/atakdmr/student-attendance/internal/api/middleware"
	"github.com/atakdmr/student-attendance/pkg/jwt"
	"github.com/atakdmr/student-attendance/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, db *gorm.DB, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			logger.Warn("就绪检查失败", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	anyRole := middleware.RoleAuth(jwt.RoleTeacher, jwt.RoleAdmin)
	teacherOnly := middleware.RoleAuth(jwt.RoleTeacher)

	// ── API v1（全部需要认证） ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtMgr, rdb, logger))
	v1.Use(middleware.RateLimit(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window, logger))
	{
		// 考勤会话
		sessions := v1.Group("/sessions")
		{
			sessions.POST("/open", anyRole, h.Session.OpenSession)
			sessions.GET("", anyRole, h.Session.ListOpenSessions)
			sessions.GET("/:id", anyRole, h.Session.GetSessionRoster)
			sessions.POST("/:id/finalize", teacherOnly, h.Session.FinalizeSession)
			sessions.POST("/:id/reanchor", anyRole, h.Session.ReanchorSession) // 课程归属由服务层校验
			sessions.GET("/:id/archives", anyRole, h.Session.ListArchivedRecords)

			// 考勤记录
			sessions.PUT("/:id/records", teacherOnly, h.Attendance.MarkBulk)
			sessions.PUT("/:id/records/:student_id", teacherOnly, h.Attendance.MarkOne)
		}

		// 周课表
		schedule := v1.Group("/schedule", anyRole)
		{
			schedule.GET("/week", h.Schedule.GetWeekOverview)
			schedule.GET("/week/export", h.Schedule.ExportWeekOverview)
		}

		v1.GET("/lessons/calendar.ics", anyRole, h.Schedule.ExportCalendar)
	}

	return r
}
