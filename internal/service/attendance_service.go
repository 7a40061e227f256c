package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/atakdmr/student-attendance/internal/dto"
	"github.com/atakdmr/student-attendance/internal/model"
	"github.com/atakdmr/student-attendance/internal/repository"
	pkgerrors "github.com/atakdmr/student-attendance/pkg/errors"
)

// AttendanceService 考勤记录业务接口
//
// 单条与批量标记走同一套校验，都在一个事务内完成：
// 会话行加共享锁（与定稿的条件更新互斥），记录按 version 做乐观并发控制。
// 任何一条失败，整批回滚。
// 会话状态先于请求内容检查，已定稿会话一律返回 ErrSessionFinalized。
type AttendanceService interface {
	MarkOne(ctx context.Context, sessionID string, mark dto.StudentMark, markedBy string) (*dto.RecordResponse, error)
	MarkBulk(ctx context.Context, sessionID string, marks []dto.StudentMark, markedBy string) error
}

type attendanceService struct {
	repo   *repository.Repository
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewAttendanceService 创建 AttendanceService 实例
func NewAttendanceService(repo *repository.Repository, loc *time.Location, logger *zap.Logger) AttendanceService {
	return &attendanceService{
		repo:   repo,
		loc:    loc,
		now:    time.Now,
		logger: logger,
	}
}

// ────────────────────── MarkOne ──────────────────────

func (s *attendanceService) MarkOne(ctx context.Context, sessionID string, mark dto.StudentMark, markedBy string) (*dto.RecordResponse, error) {
	var record *model.AttendanceRecord
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		session, err := s.loadWritableSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := validateMark(&mark); err != nil {
			return err
		}

		member, err := tx.Student.IsActiveMember(ctx, session.GroupID, mark.StudentID)
		if err != nil {
			s.logger.Error("查询班级成员失败", zap.String("student_id", mark.StudentID), zap.Error(err))
			return err
		}
		if err := ensureStudentInGroup(member, mark.StudentID); err != nil {
			return err
		}

		record, err = s.applyMark(ctx, tx, session, &mark, markedBy, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	resp := s.toRecordResponse(record)
	return &resp, nil
}

// ────────────────────── MarkBulk ──────────────────────

func (s *attendanceService) MarkBulk(ctx context.Context, sessionID string, marks []dto.StudentMark, markedBy string) error {
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		session, err := s.loadWritableSession(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := validateBatch(marks); err != nil {
			return err
		}

		roster, err := tx.Student.ListActiveByGroup(ctx, session.GroupID)
		if err != nil {
			s.logger.Error("查询班级学生失败", zap.String("group_id", session.GroupID), zap.Error(err))
			return err
		}
		members := make(map[string]struct{}, len(roster))
		for _, st := range roster {
			members[st.StudentID] = struct{}{}
		}

		// 先校验全部成员关系，再写入
		for i := range marks {
			_, ok := members[marks[i].StudentID]
			if err := ensureStudentInGroup(ok, marks[i].StudentID); err != nil {
				return err
			}
		}

		now := s.now()
		for i := range marks {
			if _, err := s.applyMark(ctx, tx, session, &marks[i], markedBy, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("批量考勤已保存",
		zap.String("session_id", sessionID),
		zap.Int("count", len(marks)),
		zap.String("by", markedBy),
	)
	return nil
}

// ── 内部辅助 ──

// loadWritableSession 在事务内读取会话并加共享锁，已定稿则拒绝
func (s *attendanceService) loadWritableSession(ctx context.Context, tx *repository.Repository, sessionID string) (*model.AttendanceSession, error) {
	session, err := tx.Session.GetByIDForShare(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		s.logger.Error("查询会话失败", zap.String("session_id", sessionID), zap.Error(err))
		return nil, err
	}
	if err := ensureSessionWritable(session); err != nil {
		return nil, err
	}
	return session, nil
}

// applyMark 新建或按版本更新一条记录
//
// 已有记录时客户端必须带上读到的 version；不带视为基于过期数据的写入。
// 记录不存在而客户端带了 version，说明记录在其读取后被清空，同样按冲突处理。
func (s *attendanceService) applyMark(ctx context.Context, tx *repository.Repository, session *model.AttendanceSession, mark *dto.StudentMark, markedBy string, now time.Time) (*model.AttendanceRecord, error) {
	existing, err := tx.Record.GetBySessionAndStudent(ctx, session.SessionID, mark.StudentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询考勤记录失败", zap.String("student_id", mark.StudentID), zap.Error(err))
		return nil, err
	}

	if existing == nil {
		if mark.Version != nil {
			return nil, fmt.Errorf("%w: %s", ErrConcurrencyConflict, mark.StudentID)
		}
		record := &model.AttendanceRecord{
			SessionID:   session.SessionID,
			StudentID:   mark.StudentID,
			Status:      mark.Status,
			LateMinutes: normalizedLateMinutes(mark),
			Note:        mark.Note,
			MarkedAt:    now,
			MarkedBy:    markedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Record.Create(ctx, record); err != nil {
			return nil, s.wrapWriteError(err, mark.StudentID)
		}
		return record, nil
	}

	if mark.Version == nil || *mark.Version != existing.Version {
		return nil, fmt.Errorf("%w: %s", ErrConcurrencyConflict, mark.StudentID)
	}

	existing.Status = mark.Status
	existing.LateMinutes = normalizedLateMinutes(mark)
	existing.Note = mark.Note
	existing.MarkedAt = now
	existing.MarkedBy = markedBy
	existing.UpdatedAt = now
	if err := tx.Record.Update(ctx, existing); err != nil {
		return nil, s.wrapWriteError(err, mark.StudentID)
	}
	return existing, nil
}

func (s *attendanceService) wrapWriteError(err error, studentID string) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return fmt.Errorf("%w: %s", ErrConcurrencyConflict, studentID)
	}
	s.logger.Error("写入考勤记录失败", zap.String("student_id", studentID), zap.Error(err))
	return err
}

func (s *attendanceService) toRecordResponse(r *model.AttendanceRecord) dto.RecordResponse {
	return dto.RecordResponse{
		ID:          r.RecordID,
		SessionID:   r.SessionID,
		StudentID:   r.StudentID,
		Status:      r.Status,
		LateMinutes: r.LateMinutes,
		Note:        r.Note,
		MarkedAt:    r.MarkedAt.In(s.loc).Format(time.RFC3339),
		MarkedBy:    r.MarkedBy,
		Version:     r.Version,
	}
}
