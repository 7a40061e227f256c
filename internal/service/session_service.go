package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atakdmr/student-attendance/config"
	"github.com/atakdmr/student-attendance/internal/dto"
	"github.com/atakdmr/student-attendance/internal/model"
	"github.com/atakdmr/student-attendance/internal/repository"
	pkgerrors "github.com/atakdmr/student-attendance/pkg/errors"
)

// SessionService 考勤会话业务接口
//
// 会话是课程模板在某一天的具体发生。同一课程同一 ISO 周内最多只有一个
// 未定稿会话：ResolveSession 先查后建，数据库的部分唯一索引兜底并发创建。
type SessionService interface {
	// ResolveSession 取课程在 targetDate 的权威会话，不存在则创建
	ResolveSession(ctx context.Context, lessonID string, targetDate time.Time, requestingUserID string) (*model.AttendanceSession, error)
	// FinalizeSession open → finalized，重复定稿返回 ErrSessionAlreadyFinalized
	FinalizeSession(ctx context.Context, sessionID, callerID string) error
	// ReanchorSession 把会话挪到 newDate 所在的周，清空其考勤记录；仅课程教师或管理员可操作
	ReanchorSession(ctx context.Context, sessionID string, newDate time.Time, callerID, role string) (*model.AttendanceSession, error)

	// OpenSession 按课程打开会话；date 为 nil 时取下一次上课日
	OpenSession(ctx context.Context, lessonID string, date *time.Time, callerID, role string) (*dto.SessionResponse, error)
	// GetSessionRoster 点名表：在读学生按姓名排序，合并已有记录，未标记者默认出勤
	GetSessionRoster(ctx context.Context, sessionID string) (*dto.SessionRosterResponse, error)
	// ListOpenSessions 教师看自己的，管理员看全部（可按教师筛选），最近的在前
	ListOpenSessions(ctx context.Context, query dto.SessionListQuery, callerID, role string) ([]dto.SessionResponse, error)
	// GetWeekOverview 一周课程总览，只查不建
	GetWeekOverview(ctx context.Context, date time.Time, callerID, role string) (*dto.WeekOverviewResponse, error)
	// ListArchivedRecords 重新锚定前归档的记录
	ListArchivedRecords(ctx context.Context, sessionID string) ([]dto.ArchivedRecordResponse, error)
}

type sessionService struct {
	repo   *repository.Repository
	cfg    *config.AttendanceConfig
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewSessionService 创建 SessionService 实例
func NewSessionService(repo *repository.Repository, cfg *config.AttendanceConfig, loc *time.Location, logger *zap.Logger) SessionService {
	return &sessionService{
		repo:   repo,
		cfg:    cfg,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// ════════════════════════════════════════════════════════════
// ResolveSession 同日优先，其次本周最新未定稿，最后新建
// ════════════════════════════════════════════════════════════

func (s *sessionService) ResolveSession(ctx context.Context, lessonID string, targetDate time.Time, requestingUserID string) (*model.AttendanceSession, error) {
	lesson, err := s.getLesson(ctx, s.repo, lessonID)
	if err != nil {
		return nil, err
	}

	target := targetDate.In(s.loc)
	session, err := s.lookupSession(ctx, lessonID, target)
	if err != nil {
		return nil, err
	}
	if session != nil {
		return session, nil
	}

	if !lesson.IsActive {
		return nil, ErrLessonInactive
	}

	session, err = s.createSession(ctx, lesson, target, requestingUserID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	// 并发请求已创建了本周的开放会话，取回胜出者
	session, err = s.lookupSession(ctx, lessonID, target)
	if err != nil {
		return nil, err
	}
	if session == nil {
		s.logger.Warn("唯一索引冲突后仍未找到会话",
			zap.String("lesson_id", lessonID),
			zap.Time("target", target),
		)
		return nil, ErrWeekHasOpenSession
	}
	return session, nil
}

// lookupSession 在 target 所在 ISO 周内查找权威会话，找不到返回 nil
func (s *sessionService) lookupSession(ctx context.Context, lessonID string, target time.Time) (*model.AttendanceSession, error) {
	weekStart, weekEnd := WeekWindow(target)
	sessions, err := s.repo.Session.ListByLessonInRange(ctx, lessonID, weekStart, weekEnd)
	if err != nil {
		s.logger.Error("查询本周会话失败", zap.String("lesson_id", lessonID), zap.Error(err))
		return nil, err
	}
	dayStart := StartOfDay(target)
	return selectSession(sessions, dayStart, dayStart.AddDate(0, 0, 1)), nil
}

// selectSession 从同一课程同一周的会话中选出权威会话
//
//  1. scheduled_at 落在 [dayStart, dayEnd) 的会话优先，不看状态
//  2. 否则取未定稿会话中最新的一个
//
// 排序：scheduled_at 降序，created_at 升序，session_id 升序
func selectSession(sessions []model.AttendanceSession, dayStart, dayEnd time.Time) *model.AttendanceSession {
	if len(sessions) == 0 {
		return nil
	}

	sorted := make([]model.AttendanceSession, len(sessions))
	copy(sorted, sessions)
	sort.Slice(sorted, func(i, j int) bool {
		return sessionBefore(&sorted[i], &sorted[j])
	})

	for i := range sorted {
		at := sorted[i].ScheduledAt
		if !at.Before(dayStart) && at.Before(dayEnd) {
			return &sorted[i]
		}
	}
	for i := range sorted {
		if !sorted[i].IsFinalized() {
			return &sorted[i]
		}
	}
	return nil
}

func sessionBefore(a, b *model.AttendanceSession) bool {
	if !a.ScheduledAt.Equal(b.ScheduledAt) {
		return a.ScheduledAt.After(b.ScheduledAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.SessionID < b.SessionID
}

func (s *sessionService) createSession(ctx context.Context, lesson *model.Lesson, target time.Time, createdBy string) (*model.AttendanceSession, error) {
	clock, err := ParseClock(lesson.StartTime)
	if err != nil {
		s.logger.Error("课程开始时间无效", zap.String("lesson_id", lesson.LessonID), zap.String("start_time", lesson.StartTime))
		return nil, err
	}

	scheduledAt := AtClock(target, clock)
	weekStart, _ := WeekWindow(scheduledAt)
	now := s.now()

	session := &model.AttendanceSession{
		LessonID:    lesson.LessonID,
		GroupID:     lesson.GroupID,
		TeacherID:   lesson.TeacherID,
		ScheduledAt: scheduledAt,
		WeekStart:   dateOnly(weekStart),
		Status:      model.SessionStatusOpen,
		BaseModel: model.BaseModel{
			CreatedAt: now,
			CreatedBy: optionalID(createdBy),
			UpdatedAt: now,
			UpdatedBy: optionalID(createdBy),
		},
	}
	if err := s.repo.Session.Create(ctx, session); err != nil {
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			s.logger.Error("创建会话失败", zap.String("lesson_id", lesson.LessonID), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("会话已创建",
		zap.String("session_id", session.SessionID),
		zap.String("lesson_id", lesson.LessonID),
		zap.Time("scheduled_at", scheduledAt),
	)
	return session, nil
}

// ════════════════════════════════════════════════════════════
// FinalizeSession 条件更新，只有 open 的会话能被定稿
// ════════════════════════════════════════════════════════════

func (s *sessionService) FinalizeSession(ctx context.Context, sessionID, callerID string) error {
	session, err := s.getSession(ctx, s.repo, sessionID)
	if err != nil {
		return err
	}
	if session.IsFinalized() {
		return ErrSessionAlreadyFinalized
	}

	if err := s.repo.Session.Finalize(ctx, sessionID, s.now(), callerID); err != nil {
		if !errors.Is(err, pkgerrors.ErrStaleState) {
			s.logger.Error("定稿会话失败", zap.String("session_id", sessionID), zap.Error(err))
			return err
		}
		// 读到 open 之后被并发定稿（或删除）
		if _, err := s.getSession(ctx, s.repo, sessionID); err != nil {
			return err
		}
		return ErrSessionAlreadyFinalized
	}

	s.logger.Info("会话已定稿", zap.String("session_id", sessionID), zap.String("by", callerID))
	return nil
}

// ════════════════════════════════════════════════════════════
// ReanchorSession 复用会话到新的一周
// ════════════════════════════════════════════════════════════
//
// 整个过程在一个事务内，第一步对会话行加排他锁，等待进行中的标记事务提交：
//   0. 非课程教师且非管理员 → ErrNotLessonTeacher
//   1. 目标周已有该课程的其他开放会话 → ErrWeekHasOpenSession
//   2. 按配置把现有记录归档，再全部删除
//   3. scheduled_at = newDate + 课程开始时间，状态回到 open，清空 end_time

func (s *sessionService) ReanchorSession(ctx context.Context, sessionID string, newDate time.Time, callerID, role string) (*model.AttendanceSession, error) {
	var result *model.AttendanceSession

	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		session, err := tx.Session.GetByIDForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			s.logger.Error("锁定会话失败", zap.String("session_id", sessionID), zap.Error(err))
			return err
		}
		lesson, err := s.getLesson(ctx, tx, session.LessonID)
		if err != nil {
			return err
		}
		if err := ensureCanManageLesson(lesson, callerID, role); err != nil {
			return err
		}
		clock, err := ParseClock(lesson.StartTime)
		if err != nil {
			return err
		}

		scheduledAt := AtClock(newDate.In(s.loc), clock)
		weekStart, weekEnd := WeekWindow(scheduledAt)

		others, err := tx.Session.ListByLessonInRange(ctx, lesson.LessonID, weekStart, weekEnd)
		if err != nil {
			s.logger.Error("查询目标周会话失败", zap.String("lesson_id", lesson.LessonID), zap.Error(err))
			return err
		}
		for i := range others {
			if others[i].SessionID != session.SessionID && !others[i].IsFinalized() {
				return ErrWeekHasOpenSession
			}
		}

		now := s.now()
		records, err := tx.Record.ListBySession(ctx, sessionID)
		if err != nil {
			s.logger.Error("查询会话记录失败", zap.String("session_id", sessionID), zap.Error(err))
			return err
		}
		if s.cfg.ArchiveOnReanchor && len(records) > 0 {
			if err := tx.Archive.BatchCreate(ctx, toArchives(records, session.ScheduledAt, now, callerID)); err != nil {
				s.logger.Error("归档考勤记录失败", zap.String("session_id", sessionID), zap.Error(err))
				return err
			}
		}
		deleted, err := tx.Record.DeleteBySession(ctx, sessionID)
		if err != nil {
			s.logger.Error("清空考勤记录失败", zap.String("session_id", sessionID), zap.Error(err))
			return err
		}

		previous := session.ScheduledAt
		session.ScheduledAt = scheduledAt
		session.WeekStart = dateOnly(weekStart)
		session.Status = model.SessionStatusOpen
		session.EndTime = nil
		session.UpdatedAt = now
		session.UpdatedBy = optionalID(callerID)

		if err := tx.Session.Reanchor(ctx, session); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrWeekHasOpenSession
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			s.logger.Error("更新会话失败", zap.String("session_id", sessionID), zap.Error(err))
			return err
		}

		s.logger.Info("会话已重新锚定",
			zap.String("session_id", sessionID),
			zap.Time("from", previous),
			zap.Time("to", scheduledAt),
			zap.Int64("records_cleared", deleted),
			zap.Bool("archived", s.cfg.ArchiveOnReanchor),
		)
		result = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func toArchives(records []model.AttendanceRecord, scheduledAt, now time.Time, archivedBy string) []model.AttendanceRecordArchive {
	archives := make([]model.AttendanceRecordArchive, 0, len(records))
	for _, r := range records {
		archives = append(archives, model.AttendanceRecordArchive{
			SessionID:          r.SessionID,
			SessionScheduledAt: scheduledAt,
			StudentID:          r.StudentID,
			Status:             r.Status,
			LateMinutes:        r.LateMinutes,
			Note:               r.Note,
			MarkedAt:           r.MarkedAt,
			MarkedBy:           r.MarkedBy,
			ArchivedAt:         now,
			ArchivedBy:         archivedBy,
		})
	}
	return archives
}

// ════════════════════════════════════════════════════════════
// 视图类操作
// ════════════════════════════════════════════════════════════

func (s *sessionService) OpenSession(ctx context.Context, lessonID string, date *time.Time, callerID, role string) (*dto.SessionResponse, error) {
	lesson, err := s.getLesson(ctx, s.repo, lessonID)
	if err != nil {
		return nil, err
	}
	if err := ensureCanManageLesson(lesson, callerID, role); err != nil {
		return nil, err
	}
	if !lesson.IsActive {
		return nil, ErrLessonInactive
	}

	var target time.Time
	if date != nil {
		target = date.In(s.loc)
	} else {
		clock, err := ParseClock(lesson.StartTime)
		if err != nil {
			return nil, err
		}
		target = NextOccurrence(lesson.DayOfWeek, clock, s.now().In(s.loc))
	}

	session, err := s.ResolveSession(ctx, lessonID, target, callerID)
	if err != nil {
		return nil, err
	}
	session.Lesson = lesson
	resp := s.toSessionResponse(session)
	return &resp, nil
}

func (s *sessionService) GetSessionRoster(ctx context.Context, sessionID string) (*dto.SessionRosterResponse, error) {
	session, err := s.getSession(ctx, s.repo, sessionID)
	if err != nil {
		return nil, err
	}

	students, err := s.repo.Student.ListActiveByGroup(ctx, session.GroupID)
	if err != nil {
		s.logger.Error("查询班级学生失败", zap.String("group_id", session.GroupID), zap.Error(err))
		return nil, err
	}
	records, err := s.repo.Record.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("查询考勤记录失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	byStudent := make(map[string]*model.AttendanceRecord, len(records))
	for i := range records {
		byStudent[records[i].StudentID] = &records[i]
	}

	entries := make([]dto.RosterEntry, 0, len(students))
	for _, st := range students {
		entry := dto.RosterEntry{
			StudentID:     st.StudentID,
			FullName:      st.FullName(),
			StudentNumber: st.StudentNumber,
			Status:        model.AttendancePresent,
		}
		if rec, ok := byStudent[st.StudentID]; ok {
			version := rec.Version
			markedAt := s.formatTime(rec.MarkedAt)
			entry.Status = rec.Status
			entry.LateMinutes = rec.LateMinutes
			entry.Note = rec.Note
			entry.Version = &version
			entry.MarkedAt = &markedAt
		}
		entries = append(entries, entry)
	}

	return &dto.SessionRosterResponse{
		Session:  s.toSessionResponse(session),
		Students: entries,
	}, nil
}

func (s *sessionService) ListOpenSessions(ctx context.Context, query dto.SessionListQuery, callerID, role string) ([]dto.SessionResponse, error) {
	filter := repository.OpenSessionFilter{
		TeacherID:   callerID,
		GroupID:     query.GroupID,
		DayOfWeek:   query.DayOfWeek,
		LessonTitle: strings.TrimSpace(query.LessonTitle),
	}
	if role == roleAdmin {
		filter.TeacherID = query.TeacherID
	}

	sessions, err := s.repo.Session.ListOpen(ctx, filter)
	if err != nil {
		s.logger.Error("查询开放会话失败", zap.Any("filter", filter), zap.Error(err))
		return nil, err
	}

	result := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		result = append(result, s.toSessionResponse(&sessions[i]))
	}
	return result, nil
}

func (s *sessionService) GetWeekOverview(ctx context.Context, date time.Time, callerID, role string) (*dto.WeekOverviewResponse, error) {
	teacherID := callerID
	if role == roleAdmin {
		teacherID = ""
	}

	lessons, err := s.repo.Lesson.ListActive(ctx, teacherID)
	if err != nil {
		s.logger.Error("查询课程失败", zap.Error(err))
		return nil, err
	}

	weekStart, weekEnd := WeekWindow(date.In(s.loc))
	ids := make([]string, 0, len(lessons))
	for _, l := range lessons {
		ids = append(ids, l.LessonID)
	}
	sessions, err := s.repo.Session.ListByLessonsInRange(ctx, ids, weekStart, weekEnd)
	if err != nil {
		s.logger.Error("查询本周会话失败", zap.Error(err))
		return nil, err
	}
	byLesson := make(map[string][]model.AttendanceSession)
	for _, ss := range sessions {
		byLesson[ss.LessonID] = append(byLesson[ss.LessonID], ss)
	}

	days := make([]dto.DayOverview, 7)
	for i := range days {
		days[i] = dto.DayOverview{
			DayOfWeek: i + 1,
			Date:      weekStart.AddDate(0, 0, i).Format("2006-01-02"),
			Lessons:   []dto.LessonOverview{},
		}
	}

	for _, l := range lessons {
		if l.DayOfWeek < 1 || l.DayOfWeek > 7 {
			continue
		}
		dayStart := weekStart.AddDate(0, 0, l.DayOfWeek-1)
		item := dto.LessonOverview{
			LessonID:  l.LessonID,
			Title:     l.Title,
			TeacherID: l.TeacherID,
			StartTime: trimClock(l.StartTime),
			EndTime:   trimClock(l.EndTime),
		}
		if l.Group != nil {
			item.GroupName = l.Group.Name
		}
		if picked := selectSession(byLesson[l.LessonID], dayStart, dayStart.AddDate(0, 0, 1)); picked != nil {
			id, status := picked.SessionID, picked.Status
			item.SessionID = &id
			item.SessionStatus = &status
		}
		days[l.DayOfWeek-1].Lessons = append(days[l.DayOfWeek-1].Lessons, item)
	}

	return &dto.WeekOverviewResponse{
		WeekStart: weekStart.Format("2006-01-02"),
		WeekEnd:   weekEnd.Format("2006-01-02"),
		Days:      days,
	}, nil
}

func (s *sessionService) ListArchivedRecords(ctx context.Context, sessionID string) ([]dto.ArchivedRecordResponse, error) {
	if _, err := s.getSession(ctx, s.repo, sessionID); err != nil {
		return nil, err
	}

	archives, err := s.repo.Archive.ListBySession(ctx, sessionID)
	if err != nil {
		s.logger.Error("查询归档记录失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ArchivedRecordResponse, 0, len(archives))
	for _, a := range archives {
		result = append(result, dto.ArchivedRecordResponse{
			StudentID:          a.StudentID,
			SessionScheduledAt: s.formatTime(a.SessionScheduledAt),
			Status:             a.Status,
			LateMinutes:        a.LateMinutes,
			Note:               a.Note,
			MarkedAt:           s.formatTime(a.MarkedAt),
			MarkedBy:           a.MarkedBy,
			ArchivedAt:         s.formatTime(a.ArchivedAt),
		})
	}
	return result, nil
}

// ── 内部辅助 ──

func (s *sessionService) getLesson(ctx context.Context, repo *repository.Repository, lessonID string) (*model.Lesson, error) {
	lesson, err := repo.Lesson.GetByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLessonNotFound
		}
		s.logger.Error("查询课程失败", zap.String("lesson_id", lessonID), zap.Error(err))
		return nil, err
	}
	return lesson, nil
}

func (s *sessionService) getSession(ctx context.Context, repo *repository.Repository, sessionID string) (*model.AttendanceSession, error) {
	session, err := repo.Session.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	return session, nil
}

func (s *sessionService) formatTime(t time.Time) string {
	return t.In(s.loc).Format(time.RFC3339)
}

func (s *sessionService) toSessionResponse(session *model.AttendanceSession) dto.SessionResponse {
	resp := dto.SessionResponse{
		ID:          session.SessionID,
		LessonID:    session.LessonID,
		GroupID:     session.GroupID,
		TeacherID:   session.TeacherID,
		ScheduledAt: s.formatTime(session.ScheduledAt),
		WeekStart:   session.WeekStart.Format("2006-01-02"),
		Status:      session.Status,
		CreatedAt:   s.formatTime(session.CreatedAt),
	}
	if session.EndTime != nil {
		end := s.formatTime(*session.EndTime)
		resp.EndTime = &end
	}
	if l := session.Lesson; l != nil {
		resp.Lesson = &dto.LessonBrief{
			ID:        l.LessonID,
			Title:     l.Title,
			DayOfWeek: l.DayOfWeek,
			StartTime: trimClock(l.StartTime),
			EndTime:   trimClock(l.EndTime),
		}
		if l.Group != nil {
			resp.Lesson.GroupName = l.Group.Name
		}
	}
	return resp
}

// trimClock "09:00:00" → "09:00"；无法解析时原样返回
func trimClock(s string) string {
	d, err := ParseClock(s)
	if err != nil {
		return s
	}
	return FormatClock(d)
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
