package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/atakdmr/student-attendance/internal/model"
	"github.com/atakdmr/student-attendance/internal/repository"
	pkgerrors "github.com/atakdmr/student-attendance/pkg/errors"
)

// ── 内存数据集 ──
//
// 所有 mock repo 共享一个 mockStore；mockTxRunner 在事务开始时快照、
// 出错时还原，模拟数据库事务的整体回滚。Get 类方法返回副本，
// 服务层修改对象不会绕过 Update 直接落库。

type mockStore struct {
	lessons  map[string]*model.Lesson
	groups   map[string]*model.Group
	students map[string]*model.Student
	sessions map[string]*model.AttendanceSession
	records  map[string]*model.AttendanceRecord
	archives []model.AttendanceRecordArchive
	seq      int

	// lockedForUpdate 记录加过排他锁的会话
	lockedForUpdate []string

	// 测试钩子：模拟并发写入者在读与写之间插入
	beforeSessionCreate   func()
	beforeSessionFinalize func()
	beforeRecordUpdate    func(record *model.AttendanceRecord)
}

func newMockStore() *mockStore {
	return &mockStore{
		lessons:  make(map[string]*model.Lesson),
		groups:   make(map[string]*model.Group),
		students: make(map[string]*model.Student),
		sessions: make(map[string]*model.AttendanceSession),
		records:  make(map[string]*model.AttendanceRecord),
	}
}

func (st *mockStore) nextID(prefix string) string {
	st.seq++
	return fmt.Sprintf("%s-%d", prefix, st.seq)
}

func (st *mockStore) snapshot() *mockStore {
	cp := newMockStore()
	cp.seq = st.seq
	for k, v := range st.lessons {
		c := *v
		cp.lessons[k] = &c
	}
	for k, v := range st.groups {
		c := *v
		cp.groups[k] = &c
	}
	for k, v := range st.students {
		c := *v
		cp.students[k] = &c
	}
	for k, v := range st.sessions {
		c := *v
		cp.sessions[k] = &c
	}
	for k, v := range st.records {
		c := *v
		cp.records[k] = &c
	}
	cp.archives = append(cp.archives, st.archives...)
	return cp
}

func (st *mockStore) restore(from *mockStore) {
	st.lessons = from.lessons
	st.groups = from.groups
	st.students = from.students
	st.sessions = from.sessions
	st.records = from.records
	st.archives = from.archives
	st.seq = from.seq
}

// newMockRepository 组装基于 mockStore 的 Repository 聚合
func newMockRepository(st *mockStore) *repository.Repository {
	repo := &repository.Repository{
		Lesson:  &mockLessonRepo{st: st},
		Student: &mockStudentRepo{st: st},
		Session: &mockSessionRepo{st: st},
		Record:  &mockRecordRepo{st: st},
		Archive: &mockArchiveRepo{st: st},
	}
	repo.Tx = &mockTxRunner{st: st, repo: repo}
	return repo
}

type mockTxRunner struct {
	st   *mockStore
	repo *repository.Repository
}

func (m *mockTxRunner) Transaction(_ context.Context, fn func(txRepo *repository.Repository) error) error {
	saved := m.st.snapshot()
	if err := fn(m.repo); err != nil {
		m.st.restore(saved)
		return err
	}
	return nil
}

// ── Mock LessonRepository ──

type mockLessonRepo struct{ st *mockStore }

func (m *mockLessonRepo) withGroup(l *model.Lesson) model.Lesson {
	c := *l
	if g, ok := m.st.groups[c.GroupID]; ok {
		gc := *g
		c.Group = &gc
	}
	return c
}

func (m *mockLessonRepo) GetByID(_ context.Context, id string) (*model.Lesson, error) {
	l, ok := m.st.lessons[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := m.withGroup(l)
	return &c, nil
}

func (m *mockLessonRepo) ListActive(_ context.Context, teacherID string) ([]model.Lesson, error) {
	var result []model.Lesson
	for _, l := range m.st.lessons {
		if !l.IsActive || (teacherID != "" && l.TeacherID != teacherID) {
			continue
		}
		result = append(result, m.withGroup(l))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		if result[i].StartTime != result[j].StartTime {
			return result[i].StartTime < result[j].StartTime
		}
		return result[i].Title < result[j].Title
	})
	return result, nil
}

// ── Mock StudentRepository ──

type mockStudentRepo struct{ st *mockStore }

func (m *mockStudentRepo) ListActiveByGroup(_ context.Context, groupID string) ([]model.Student, error) {
	var result []model.Student
	for _, s := range m.st.students {
		if s.GroupID == groupID && s.IsActive {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastName != result[j].LastName {
			return result[i].LastName < result[j].LastName
		}
		return result[i].FirstName < result[j].FirstName
	})
	return result, nil
}

func (m *mockStudentRepo) IsActiveMember(_ context.Context, groupID, studentID string) (bool, error) {
	s, ok := m.st.students[studentID]
	return ok && s.GroupID == groupID && s.IsActive, nil
}

// ── Mock SessionRepository ──

type mockSessionRepo struct{ st *mockStore }

// openConflict 模拟部分唯一索引 (lesson_id, week_start) WHERE status='open'
func (m *mockSessionRepo) openConflict(s *model.AttendanceSession) bool {
	if s.Status != model.SessionStatusOpen {
		return false
	}
	for _, other := range m.st.sessions {
		if other.SessionID != s.SessionID &&
			other.LessonID == s.LessonID &&
			other.Status == model.SessionStatusOpen &&
			other.WeekStart.Equal(s.WeekStart) {
			return true
		}
	}
	return false
}

func (m *mockSessionRepo) Create(_ context.Context, session *model.AttendanceSession) error {
	if m.st.beforeSessionCreate != nil {
		hook := m.st.beforeSessionCreate
		m.st.beforeSessionCreate = nil
		hook()
	}
	if m.openConflict(session) {
		return gorm.ErrDuplicatedKey
	}
	if session.SessionID == "" {
		session.SessionID = m.st.nextID("sess")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	c := *session
	c.Lesson = nil
	m.st.sessions[session.SessionID] = &c
	return nil
}

func (m *mockSessionRepo) GetByID(_ context.Context, id string) (*model.AttendanceSession, error) {
	s, ok := m.st.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *s
	if l, ok := m.st.lessons[c.LessonID]; ok {
		lc := *l
		c.Lesson = &lc
	}
	return &c, nil
}

func (m *mockSessionRepo) GetByIDForShare(ctx context.Context, id string) (*model.AttendanceSession, error) {
	return m.GetByID(ctx, id)
}

func (m *mockSessionRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceSession, error) {
	m.st.lockedForUpdate = append(m.st.lockedForUpdate, id)
	return m.GetByID(ctx, id)
}

func (m *mockSessionRepo) sorted(filter func(*model.AttendanceSession) bool) []model.AttendanceSession {
	var result []model.AttendanceSession
	for _, s := range m.st.sessions {
		if filter(s) {
			result = append(result, *s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return sessionBefore(&result[i], &result[j]) })
	return result
}

func (m *mockSessionRepo) ListByLessonInRange(_ context.Context, lessonID string, from, to time.Time) ([]model.AttendanceSession, error) {
	return m.sorted(func(s *model.AttendanceSession) bool {
		return s.LessonID == lessonID && !s.ScheduledAt.Before(from) && s.ScheduledAt.Before(to)
	}), nil
}

func (m *mockSessionRepo) ListByLessonsInRange(_ context.Context, lessonIDs []string, from, to time.Time) ([]model.AttendanceSession, error) {
	ids := make(map[string]bool, len(lessonIDs))
	for _, id := range lessonIDs {
		ids[id] = true
	}
	return m.sorted(func(s *model.AttendanceSession) bool {
		return ids[s.LessonID] && !s.ScheduledAt.Before(from) && s.ScheduledAt.Before(to)
	}), nil
}

func (m *mockSessionRepo) ListOpen(_ context.Context, f repository.OpenSessionFilter) ([]model.AttendanceSession, error) {
	return m.sorted(func(s *model.AttendanceSession) bool {
		if s.Status != model.SessionStatusOpen {
			return false
		}
		if (f.TeacherID != "" && s.TeacherID != f.TeacherID) || (f.GroupID != "" && s.GroupID != f.GroupID) {
			return false
		}
		if f.DayOfWeek == 0 && f.LessonTitle == "" {
			return true
		}
		l, ok := m.st.lessons[s.LessonID]
		if !ok {
			return false
		}
		if f.DayOfWeek != 0 && l.DayOfWeek != f.DayOfWeek {
			return false
		}
		return f.LessonTitle == "" || strings.Contains(strings.ToLower(l.Title), strings.ToLower(f.LessonTitle))
	}), nil
}

func (m *mockSessionRepo) Finalize(_ context.Context, id string, endTime time.Time, updatedBy string) error {
	if m.st.beforeSessionFinalize != nil {
		hook := m.st.beforeSessionFinalize
		m.st.beforeSessionFinalize = nil
		hook()
	}
	s, ok := m.st.sessions[id]
	if !ok || s.Status != model.SessionStatusOpen {
		return pkgerrors.ErrStaleState
	}
	s.Status = model.SessionStatusFinalized
	s.EndTime = &endTime
	s.UpdatedBy = &updatedBy
	return nil
}

func (m *mockSessionRepo) Reanchor(_ context.Context, session *model.AttendanceSession) error {
	s, ok := m.st.sessions[session.SessionID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	candidate := *session
	candidate.Status = model.SessionStatusOpen
	if m.openConflict(&candidate) {
		return gorm.ErrDuplicatedKey
	}
	s.ScheduledAt = session.ScheduledAt
	s.WeekStart = session.WeekStart
	s.Status = model.SessionStatusOpen
	s.EndTime = nil
	s.UpdatedAt = session.UpdatedAt
	s.UpdatedBy = session.UpdatedBy
	return nil
}

// ── Mock RecordRepository ──

type mockRecordRepo struct{ st *mockStore }

func (m *mockRecordRepo) GetBySessionAndStudent(_ context.Context, sessionID, studentID string) (*model.AttendanceRecord, error) {
	for _, r := range m.st.records {
		if r.SessionID == sessionID && r.StudentID == studentID {
			c := *r
			return &c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockRecordRepo) ListBySession(_ context.Context, sessionID string) ([]model.AttendanceRecord, error) {
	var result []model.AttendanceRecord
	for _, r := range m.st.records {
		if r.SessionID == sessionID {
			result = append(result, *r)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StudentID < result[j].StudentID })
	return result, nil
}

func (m *mockRecordRepo) Create(_ context.Context, record *model.AttendanceRecord) error {
	for _, r := range m.st.records {
		if r.SessionID == record.SessionID && r.StudentID == record.StudentID {
			return pkgerrors.ErrOptimisticLock
		}
	}
	record.RecordID = m.st.nextID("rec")
	record.Version = 1
	c := *record
	m.st.records[record.RecordID] = &c
	return nil
}

func (m *mockRecordRepo) Update(_ context.Context, record *model.AttendanceRecord) error {
	if m.st.beforeRecordUpdate != nil {
		hook := m.st.beforeRecordUpdate
		m.st.beforeRecordUpdate = nil
		hook(record)
	}
	stored, ok := m.st.records[record.RecordID]
	if !ok || stored.Version != record.Version {
		return pkgerrors.ErrOptimisticLock
	}
	record.Version++
	c := *record
	m.st.records[record.RecordID] = &c
	return nil
}

func (m *mockRecordRepo) DeleteBySession(_ context.Context, sessionID string) (int64, error) {
	var n int64
	for id, r := range m.st.records {
		if r.SessionID == sessionID {
			delete(m.st.records, id)
			n++
		}
	}
	return n, nil
}

// ── Mock ArchiveRepository ──

type mockArchiveRepo struct{ st *mockStore }

func (m *mockArchiveRepo) BatchCreate(_ context.Context, archives []model.AttendanceRecordArchive) error {
	for i := range archives {
		archives[i].ArchiveID = m.st.nextID("arc")
	}
	m.st.archives = append(m.st.archives, archives...)
	return nil
}

func (m *mockArchiveRepo) ListBySession(_ context.Context, sessionID string) ([]model.AttendanceRecordArchive, error) {
	var result []model.AttendanceRecordArchive
	for _, a := range m.st.archives {
		if a.SessionID == sessionID {
			result = append(result, a)
		}
	}
	return result, nil
}

// ── 种子数据 ──

const (
	testTeacherID = "teacher-1"
	testOtherID   = "teacher-2"
	testAdminID   = "admin-1"
	testGroupID   = "group-1"
	testLessonID  = "lesson-mon"
)

// seedLesson 周一 09:00-10:30 的课程，带三名在读学生、一名休学学生、一名他班学生
func seedLesson(st *mockStore) {
	st.groups[testGroupID] = &model.Group{GroupID: testGroupID, Name: "高一(3)班"}
	st.groups["group-2"] = &model.Group{GroupID: "group-2", Name: "高一(5)班"}
	st.lessons[testLessonID] = &model.Lesson{
		LessonID:  testLessonID,
		Title:     "数学",
		GroupID:   testGroupID,
		TeacherID: testTeacherID,
		DayOfWeek: 1,
		StartTime: "09:00:00",
		EndTime:   "10:30:00",
		IsActive:  true,
	}
	st.students["stu-1"] = &model.Student{StudentID: "stu-1", GroupID: testGroupID, FirstName: "伟", LastName: "张", IsActive: true}
	st.students["stu-2"] = &model.Student{StudentID: "stu-2", GroupID: testGroupID, FirstName: "芳", LastName: "李", IsActive: true}
	st.students["stu-3"] = &model.Student{StudentID: "stu-3", GroupID: testGroupID, FirstName: "强", LastName: "王", IsActive: true}
	st.students["stu-gone"] = &model.Student{StudentID: "stu-gone", GroupID: testGroupID, FirstName: "休", LastName: "赵", IsActive: false}
	st.students["stu-other"] = &model.Student{StudentID: "stu-other", GroupID: "group-2", FirstName: "外", LastName: "孙", IsActive: true}
}

// seedSession 直接写入一条会话（绕过唯一约束，用于构造边界数据）
func seedSession(st *mockStore, id string, scheduledAt time.Time, status string, createdAt time.Time) *model.AttendanceSession {
	weekStart, _ := WeekWindow(scheduledAt)
	s := &model.AttendanceSession{
		SessionID:   id,
		LessonID:    testLessonID,
		GroupID:     testGroupID,
		TeacherID:   testTeacherID,
		ScheduledAt: scheduledAt,
		WeekStart:   dateOnly(weekStart),
		Status:      status,
		BaseModel:   model.BaseModel{CreatedAt: createdAt},
	}
	st.sessions[id] = s
	return s
}
