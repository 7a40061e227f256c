package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atakdmr/student-attendance/internal/model"
	pkgerrors "github.com/atakdmr/student-attendance/pkg/errors"
)

// SessionRepository 考勤会话数据访问接口
//
// 列表查询统一按 scheduled_at DESC, created_at ASC, session_id ASC 排序，
// 与服务层的 selectSession 比较器保持一致。
type SessionRepository interface {
	// Create 新建会话；同课程同周已有开放会话时返回 gorm.ErrDuplicatedKey
	Create(ctx context.Context, session *model.AttendanceSession) error
	GetByID(ctx context.Context, id string) (*model.AttendanceSession, error)
	// GetByIDForShare 读取会话并加共享锁，必须在事务内调用
	GetByIDForShare(ctx context.Context, id string) (*model.AttendanceSession, error)
	// GetByIDForUpdate 读取会话并加排他锁，必须在事务内调用
	// 与 GetByIDForShare 互斥：持锁期间不会有并发标记写入该会话的记录
	GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceSession, error)
	// ListByLessonInRange scheduled_at ∈ [from, to)，不过滤状态
	ListByLessonInRange(ctx context.Context, lessonID string, from, to time.Time) ([]model.AttendanceSession, error)
	ListByLessonsInRange(ctx context.Context, lessonIDs []string, from, to time.Time) ([]model.AttendanceSession, error)
	// ListOpen 按条件列出开放会话，零值条件不参与过滤
	ListOpen(ctx context.Context, filter OpenSessionFilter) ([]model.AttendanceSession, error)
	// Finalize 条件更新 open → finalized；会话不存在或已定稿时返回 pkgerrors.ErrStaleState
	Finalize(ctx context.Context, id string, endTime time.Time, updatedBy string) error
	// Reanchor 改写 scheduled_at / week_start 并重置为 open；
	// 目标周已有其他开放会话时返回 gorm.ErrDuplicatedKey
	Reanchor(ctx context.Context, session *model.AttendanceSession) error
}

// OpenSessionFilter 开放会话列表的过滤条件
type OpenSessionFilter struct {
	TeacherID   string
	GroupID     string
	DayOfWeek   int    // 课程的 ISO 星期，0 表示不限
	LessonTitle string // 课程名称包含匹配，不区分大小写
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

const (
	sessionOrder          = "scheduled_at DESC, created_at ASC, session_id ASC"
	qualifiedSessionOrder = "attendance_sessions.scheduled_at DESC, attendance_sessions.created_at ASC, attendance_sessions.session_id ASC"
)

func (r *sessionRepo) Create(ctx context.Context, session *model.AttendanceSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.AttendanceSession, error) {
	var session model.AttendanceSession
	err := r.db.WithContext(ctx).
		Preload("Lesson").
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) GetByIDForShare(ctx context.Context, id string) (*model.AttendanceSession, error) {
	return r.getLocked(ctx, id, "SHARE")
}

func (r *sessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceSession, error) {
	return r.getLocked(ctx, id, "UPDATE")
}

func (r *sessionRepo) getLocked(ctx context.Context, id, strength string) (*model.AttendanceSession, error) {
	var session model.AttendanceSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: strength}).
		Where("session_id = ?", id).
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) ListByLessonInRange(ctx context.Context, lessonID string, from, to time.Time) ([]model.AttendanceSession, error) {
	var sessions []model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("lesson_id = ? AND scheduled_at >= ? AND scheduled_at < ?", lessonID, from, to).
		Order(sessionOrder).
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) ListByLessonsInRange(ctx context.Context, lessonIDs []string, from, to time.Time) ([]model.AttendanceSession, error) {
	if len(lessonIDs) == 0 {
		return nil, nil
	}
	var sessions []model.AttendanceSession
	err := r.db.WithContext(ctx).
		Where("lesson_id IN ? AND scheduled_at >= ? AND scheduled_at < ?", lessonIDs, from, to).
		Order(sessionOrder).
		Find(&sessions).Error
	return sessions, err
}

func (r *sessionRepo) ListOpen(ctx context.Context, filter OpenSessionFilter) ([]model.AttendanceSession, error) {
	var sessions []model.AttendanceSession
	q := r.db.WithContext(ctx).
		Preload("Lesson").
		Where("attendance_sessions.status = ?", model.SessionStatusOpen)
	if filter.TeacherID != "" {
		q = q.Where("attendance_sessions.teacher_id = ?", filter.TeacherID)
	}
	if filter.GroupID != "" {
		q = q.Where("attendance_sessions.group_id = ?", filter.GroupID)
	}
	if filter.DayOfWeek != 0 || filter.LessonTitle != "" {
		q = q.Joins("JOIN lessons ON lessons.lesson_id = attendance_sessions.lesson_id")
		if filter.DayOfWeek != 0 {
			q = q.Where("lessons.day_of_week = ?", filter.DayOfWeek)
		}
		if filter.LessonTitle != "" {
			q = q.Where("lessons.title ILIKE ?", "%"+escapeLike(filter.LessonTitle)+"%")
		}
	}
	err := q.Order(qualifiedSessionOrder).Find(&sessions).Error
	return sessions, err
}

// escapeLike 转义 LIKE 通配符，用户输入按字面匹配
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *sessionRepo) Finalize(ctx context.Context, id string, endTime time.Time, updatedBy string) error {
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceSession{}).
		Where("session_id = ? AND status = ?", id, model.SessionStatusOpen).
		Updates(map[string]interface{}{
			"status":     model.SessionStatusFinalized,
			"end_time":   endTime,
			"updated_at": endTime,
			"updated_by": updatedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrStaleState
	}
	return nil
}

func (r *sessionRepo) Reanchor(ctx context.Context, session *model.AttendanceSession) error {
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceSession{}).
		Where("session_id = ?", session.SessionID).
		Updates(map[string]interface{}{
			"scheduled_at": session.ScheduledAt,
			"week_start":   session.WeekStart,
			"status":       model.SessionStatusOpen,
			"end_time":     nil,
			"updated_at":   session.UpdatedAt,
			"updated_by":   session.UpdatedBy,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
