package service

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/atakdmr/student-attendance/internal/dto"
	"github.com/atakdmr/student-attendance/internal/model"
)

// ── 共享业务错误 ──
//
// 错误分四类，Handler 据此映射状态码：
//   - 不存在：ErrSessionNotFound / ErrLessonNotFound
//   - 状态冲突（会话已定稿，拒绝写入）：ErrSessionFinalized
//   - 并发冲突：ErrSessionAlreadyFinalized / ErrConcurrencyConflict / ErrWeekHasOpenSession
//   - 输入不合法：其余

var (
	ErrSessionNotFound         = errors.New("考勤会话不存在")
	ErrLessonNotFound          = errors.New("课程不存在")
	ErrLessonInactive          = errors.New("课程已停用")
	ErrNotLessonTeacher        = errors.New("只能操作自己任课的课程")
	ErrSessionFinalized        = errors.New("会话已定稿，不可再修改考勤")
	ErrSessionAlreadyFinalized = errors.New("会话已定稿")
	ErrWeekHasOpenSession      = errors.New("目标周已存在该课程的开放会话")
	ErrConcurrencyConflict     = errors.New("考勤记录已被他人修改，请刷新后重试")
	ErrStudentNotInGroup       = errors.New("学生不属于该会话的班级")
	ErrInvalidMark             = errors.New("考勤标记不合法")
	ErrEmptyBatch              = errors.New("批量标记不能为空")
	ErrDuplicateStudent        = errors.New("同一批次中学生重复")
	ErrInvalidTimeRange        = errors.New("时间范围不合法")
)

const (
	maxLateMinutes = 600
	maxNoteLength  = 500
)

// ensureSessionWritable 已定稿的会话拒绝一切写入
func ensureSessionWritable(session *model.AttendanceSession) error {
	if session.IsFinalized() {
		return ErrSessionFinalized
	}
	return nil
}

// ensureStudentInGroup member 由调用方从花名册查出
func ensureStudentInGroup(member bool, studentID string) error {
	if !member {
		return fmt.Errorf("%w: %s", ErrStudentNotInGroup, studentID)
	}
	return nil
}

// validateMark 校验单条标记的取值
func validateMark(mark *dto.StudentMark) error {
	if mark.StudentID == "" {
		return fmt.Errorf("%w: 缺少 student_id", ErrInvalidMark)
	}
	if !model.IsValidAttendanceStatus(mark.Status) {
		return fmt.Errorf("%w: 未知状态 %q", ErrInvalidMark, mark.Status)
	}
	if mark.LateMinutes != nil && (*mark.LateMinutes < 0 || *mark.LateMinutes > maxLateMinutes) {
		return fmt.Errorf("%w: 迟到分钟数须在 0-%d 之间", ErrInvalidMark, maxLateMinutes)
	}
	if mark.Note != nil && utf8.RuneCountInString(*mark.Note) > maxNoteLength {
		return fmt.Errorf("%w: 备注过长", ErrInvalidMark)
	}
	return nil
}

// validateBatch 批次不能为空，同一学生只能出现一次
func validateBatch(marks []dto.StudentMark) error {
	if len(marks) == 0 {
		return ErrEmptyBatch
	}
	seen := make(map[string]struct{}, len(marks))
	for i := range marks {
		if err := validateMark(&marks[i]); err != nil {
			return err
		}
		if _, dup := seen[marks[i].StudentID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateStudent, marks[i].StudentID)
		}
		seen[marks[i].StudentID] = struct{}{}
	}
	return nil
}

// normalizedLateMinutes 只有迟到才保留分钟数
func normalizedLateMinutes(mark *dto.StudentMark) *int {
	if mark.Status != model.AttendanceLate || mark.LateMinutes == nil {
		return nil
	}
	v := *mark.LateMinutes
	return &v
}

// ensureCanManageLesson 教师只能操作自己任课的课程，管理员不限
func ensureCanManageLesson(lesson *model.Lesson, callerID, role string) error {
	if role == roleAdmin {
		return nil
	}
	if lesson.TeacherID != callerID {
		return ErrNotLessonTeacher
	}
	return nil
}
