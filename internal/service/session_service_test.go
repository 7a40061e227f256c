package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/atakdmr/student-attendance/config"
	"github.com/atakdmr/student-attendance/internal/dto"
	"github.com/atakdmr/student-attendance/internal/model"
)

// ── 测试辅助 ──

var shanghai = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		panic(err)
	}
	return loc
}()

func at(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, shanghai)
}

// 2025-03-03 为周一；固定"现在"为 2025-03-05（周三）10:00
var testNow = at(2025, 3, 5, 10, 0)

func setupTestSessionService() (*sessionService, *mockStore) {
	st := newMockStore()
	seedLesson(st)
	cfg := &config.AttendanceConfig{Timezone: "Asia/Shanghai", ArchiveOnReanchor: true}
	svc := NewSessionService(newMockRepository(st), cfg, shanghai, zap.NewNop()).(*sessionService)
	svc.now = func() time.Time { return testNow }
	return svc, st
}

func countOpen(st *mockStore) int {
	n := 0
	for _, s := range st.sessions {
		if s.Status == model.SessionStatusOpen {
			n++
		}
	}
	return n
}

// ── ResolveSession ──

func TestSessionService_Resolve_CreatesSession(t *testing.T) {
	svc, st := setupTestSessionService()

	session, err := svc.ResolveSession(context.Background(), testLessonID, at(2025, 3, 3, 0, 0), testTeacherID)
	if err != nil {
		t.Fatalf("ResolveSession 失败: %v", err)
	}

	if want := at(2025, 3, 3, 9, 0); !session.ScheduledAt.Equal(want) {
		t.Errorf("scheduled_at 期望 %v，实际 %v", want, session.ScheduledAt)
	}
	if session.Status != model.SessionStatusOpen {
		t.Errorf("新会话应为 open，实际 %s", session.Status)
	}
	if session.GroupID != testGroupID || session.TeacherID != testTeacherID {
		t.Errorf("班级/教师应从课程复制: %s / %s", session.GroupID, session.TeacherID)
	}
	if session.CreatedBy == nil || *session.CreatedBy != testTeacherID {
		t.Error("created_by 应为请求者")
	}
	if want := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC); !session.WeekStart.Equal(want) {
		t.Errorf("week_start 期望 %v，实际 %v", want, session.WeekStart)
	}
	if len(st.sessions) != 1 {
		t.Errorf("期望 1 个会话，实际 %d", len(st.sessions))
	}
}

func TestSessionService_Resolve_IdempotentWithinWeek(t *testing.T) {
	svc, st := setupTestSessionService()
	ctx := context.Background()

	first, err := svc.ResolveSession(ctx, testLessonID, at(2025, 3, 3, 8, 0), testTeacherID)
	if err != nil {
		t.Fatalf("第一次 ResolveSession 失败: %v", err)
	}
	// 同一周的周四、周日
	for _, d := range []time.Time{at(2025, 3, 6, 15, 0), at(2025, 3, 9, 23, 0)} {
		again, err := svc.ResolveSession(ctx, testLessonID, d, testOtherID)
		if err != nil {
			t.Fatalf("ResolveSession(%v) 失败: %v", d, err)
		}
		if again.SessionID != first.SessionID {
			t.Errorf("同一周应返回同一会话: %s vs %s", first.SessionID, again.SessionID)
		}
	}
	if countOpen(st) != 1 {
		t.Errorf("同一周最多一个开放会话，实际 %d", countOpen(st))
	}
}

func TestSessionService_Resolve_SundayBelongsToPrecedingMonday(t *testing.T) {
	svc, st := setupTestSessionService()
	ctx := context.Background()

	monday := seedSession(st, "sess-mon", at(2025, 3, 3, 9, 0), model.SessionStatusOpen, testNow)

	got, err := svc.ResolveSession(ctx, testLessonID, at(2025, 3, 9, 12, 0), testTeacherID)
	if err != nil {
		t.Fatalf("ResolveSession 失败: %v", err)
	}
	if got.SessionID != monday.SessionID {
		t.Errorf("周日应落在 3/3 开始的那一周，得到 %s", got.SessionID)
	}

	// 3/2 是上一周的周日，不能命中 3/3 的会话
	prev, err := svc.ResolveSession(ctx, testLessonID, at(2025, 3, 2, 12, 0), testTeacherID)
	if err != nil {
		t.Fatalf("ResolveSession 失败: %v", err)
	}
	if prev.SessionID == monday.SessionID {
		t.Error("上一周的周日不应返回本周会话")
	}
	if want := at(2025, 3, 2, 9, 0); !prev.ScheduledAt.Equal(want) {
		t.Errorf("期望新会话在 %v，实际 %v", want, prev.ScheduledAt)
	}
}

func TestSessionService_Resolve_SameDayPrecedence(t *testing.T) {
	svc, st := setupTestSessionService()
	ctx := context.Background()

	tuesday := seedSession(st, "sess-tue", at(2025, 3, 4, 9, 0), model.SessionStatusFinalized, testNow)
	thursday := seedSession(st, "sess-thu", at(2025, 3, 6, 9, 0), model.SessionStatusOpen, testNow)

	got, err := svc.ResolveSession(ctx, testLessonID, at(2025, 3, 4, 0, 0), testTeacherID)
	if err != nil {
		t.Fatalf("ResolveSession 失败: %v", err)
	}
	if got.SessionID != tuesday.SessionID {
		t.Errorf("同日会话（即使已定稿）优先，得到 %s", got.SessionID)
	}

	got, err = svc.ResolveSession(ctx, testLessonID, at(2025, 3, 5, 0, 0), testTeacherID)
	if err != nil {
		t.Fatalf("ResolveSession 失败: %v", err)
	}
	if got.SessionID != thursday.SessionID {
		t.Errorf("无同日会话时应回落到本周开放会话，得到 %s", got.SessionID)
	}
	if len(st.sessions) != 2 {
		t.Errorf("不应新建会话，实际共 %d 个", len(st.sessions))
	}
}

func TestSessionService_Resolve_FinalizedWeekCreatesNew(t *testing.T) {
	svc, st := setupTestSessionService()

	seedSession(st, "sess-done", at(2025, 3, 3, 9, 0), model.SessionStatusFinalized, testNow)

	got, err := svc.ResolveSession(context.Background(), testLessonID, at(2025, 3, 5, 0, 0), testTeacherID)
	if err != nil {
		t.Fatalf("ResolveSession 失败: %v", err)
	}
	if got.SessionID == "sess-done" {
		t.Error("本周只有已定稿会话时应新建")
	}
	if want := at(2025, 3, 5, 9, 0); !got.ScheduledAt.Equal(want) {
		t.Errorf("新会话期望 %v，实际 %v", want, got.ScheduledAt)
	}
}

func TestSessionService_Resolve_LessonNotFound(t *testing.T) {
	svc, _ := setupTestSessionService()

	_, err := svc.ResolveSession(context.Background(), "nope", testNow, testTeacherID)
	if !errors.Is(err, ErrLessonNotFound) {
		t.Errorf("期望 ErrLessonNotFound，实际: %v", err)
	}
}

func TestSessionService_Resolve_InactiveLesson(t *testing.T) {
	svc, st := setupTestSessionService()
	st.lessons[testLessonID].IsActive = false

	_, err := svc.ResolveSession(context.Background(), testLessonID, testNow, testTeacherID)
	if !errors.Is(err, ErrLessonInactive) {
		t.Errorf("停用课程不应新建会话，实际: %v", err)
	}

	// 已有会话仍可取回
	seedSession(st, "sess-old", at(2025, 3, 3, 9, 0), model.SessionStatusOpen, testNow)
	got, err := svc.ResolveSession(context.Background(), testLessonID, testNow, testTeacherID)
	if err != nil {
		t.Fatalf("ResolveSession 失败: %v", err)
	}
	if got.SessionID != "sess-old" {
		t.Errorf("期望取回 sess-old，实际 %s", got.SessionID)
	}
}

func TestSessionService_Resolve_ConcurrentCreateReturnsWinner(t *testing.T) {
	svc, st := setupTestSessionService()

	// 查询之后、插入之前，另一请求抢先建好了会话
	st.beforeSessionCreate = func() {
		seedSession(st, "sess-winner", at(2025, 3, 3, 9, 0), model.SessionStatusOpen, testNow)
	}

	got, err := svc.ResolveSession(context.Background(), testLessonID, at(2025, 3, 5, 0, 0), testTeacherID)
	if err != nil {
		t.Fatalf("ResolveSession 失败: %v", err)
	}
	if got.SessionID != "sess-winner" {
		t.Errorf("期望返回并发胜出的会话，实际 %s", got.SessionID)
	}
	if countOpen(st) != 1 {
		t.Errorf("期望 1 个开放会话，实际 %d", countOpen(st))
	}
}

func TestSelectSession_TieBreak(t *testing.T) {
	same := at(2025, 3, 6, 9, 0)
	sessions := []model.AttendanceSession{
		{SessionID: "b", ScheduledAt: same, Status: model.SessionStatusOpen, BaseModel: model.BaseModel{CreatedAt: testNow}},
		{SessionID: "c", ScheduledAt: same, Status: model.SessionStatusOpen, BaseModel: model.BaseModel{CreatedAt: testNow.Add(-time.Hour)}},
		{SessionID: "a", ScheduledAt: same, Status: model.SessionStatusOpen, BaseModel: model.BaseModel{CreatedAt: testNow}},
		{SessionID: "z", ScheduledAt: at(2025, 3, 4, 9, 0), Status: model.SessionStatusOpen, BaseModel: model.BaseModel{CreatedAt: testNow}},
	}
	dayStart := at(2025, 3, 5, 0, 0)

	got := selectSession(sessions, dayStart, dayStart.AddDate(0, 0, 1))
	if got == nil || got.SessionID != "c" {
		t.Fatalf("最新时刻中最早创建的应胜出，实际 %+v", got)
	}

	// 去掉 c 后，创建时间相同按 id 升序
	got = selectSession(append(sessions[:1:1], sessions[2:]...), dayStart, dayStart.AddDate(0, 0, 1))
	if got == nil || got.SessionID != "a" {
		t.Fatalf("创建时间相同时按 session_id 升序，实际 %+v", got)
	}
}

func TestSelectSession_Empty(t *testing.T) {
	if got := selectSession(nil, testNow, testNow.Add(24*time.Hour)); got != nil {
		t.Errorf("空集合应返回 nil，实际 %+v", got)
	}
}

// ── FinalizeSession ──

func TestSessionService_Finalize(t *testing.T) {
	svc, st := setupTestSessionService()
	ctx := context.Background()
	seedSession(st, "sess-1", at(2025, 3, 3, 9, 0), model.SessionStatusOpen, testNow)

	if err := svc.FinalizeSession(ctx, "sess-1", testTeacherID); err != nil {
		t.Fatalf("FinalizeSession 失败: %v", err)
	}
	s := st.sessions["sess-1"]
	if s.Status != model.SessionStatusFinalized {
		t.Errorf("期望 finalized，实际 %s", s.Status)
	}
	if s.EndTime == nil || !s.EndTime.Equal(testNow) {
		t.Fatalf("end_time 应为定稿时刻，实际 %v", s.EndTime)
	}

	// 第二次定稿被拒绝，end_time 不变
	svc.now = func() time.Time { return testNow.Add(time.Hour) }
	if err := svc.FinalizeSession(ctx, "sess-1", testTeacherID); !errors.Is(err, ErrSessionAlreadyFinalized) {
		t.Errorf("期望 ErrSessionAlreadyFinalized，实际: %v", err)
	}
	if !st.sessions["sess-1"].EndTime.Equal(testNow) {
		t.Error("重复定稿不应修改 end_time")
	}
}

func TestSessionService_Finalize_NotFound(t *testing.T) {
	svc, _ := setupTestSessionService()

	if err := svc.FinalizeSession(context.Background(), "nope", testTeacherID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("期望 ErrSessionNotFound，实际: %v", err)
	}
}

func TestSessionService_Finalize_LostRace(t *testing.T) {
	svc, st := setupTestSessionService()
	seedSession(st, "sess-1", at(2025, 3, 3, 9, 0), model.SessionStatusOpen, testNow)

	// 读到 open 之后，另一请求先完成了定稿
	st.beforeSessionFinalize = func() {
		st.sessions["sess-1"].Status = model.SessionStatusFinalized
	}

	if err := svc.FinalizeSession(context.Background(), "sess-1", testTeacherID); !errors.Is(err, ErrSessionAlreadyFinalized) {
		t.Errorf("期望 ErrSessionAlreadyFinalized，实际: %v", err)
	}
}

// ── ReanchorSession ──

func seedMarkedSession(st *mockStore, status string) {
	s := seedSession(st, "sess-1", at(2025, 3, 3, 9, 0), status, testNow)
	if status == model.SessionStatusFinalized {
		end := at(2025, 3, 3, 10, 30)
		s.EndTime = &end
	}
	for _, id := range []string{"stu-1", "stu-2"} {
		rid := "rec-" + id
		st.records[rid] = &model.AttendanceRecord{
			RecordID: rid, SessionID: "sess-1", StudentID: id,
			Status: model.AttendanceAbsent, MarkedAt: testNow, MarkedBy: testTeacherID, Version: 3,
		}
	}
}

func TestSessionService_Reanchor(t *testing.T) {
	svc, st := setupTestSessionService()
	seedMarkedSession(st, model.SessionStatusFinalized)

	got, err := svc.ReanchorSession(context.Background(), "sess-1", at(2025, 3, 10, 0, 0), testAdminID, "admin")
	if err != nil {
		t.Fatalf("ReanchorSession 失败: %v", err)
	}

	if got.SessionID != "sess-1" {
		t.Errorf("应复用同一会话，实际 %s", got.SessionID)
	}
	stored := st.sessions["sess-1"]
	if want := at(2025, 3, 10, 9, 0); !stored.ScheduledAt.Equal(want) {
		t.Errorf("scheduled_at 期望 %v，实际 %v", want, stored.ScheduledAt)
	}
	if stored.Status != model.SessionStatusOpen || stored.EndTime != nil {
		t.Errorf("应重置为 open 且清空 end_time: %s %v", stored.Status, stored.EndTime)
	}
	if len(st.records) != 0 {
		t.Errorf("旧记录应被清空，剩余 %d", len(st.records))
	}
	if len(st.archives) != 2 {
		t.Fatalf("期望归档 2 条，实际 %d", len(st.archives))
	}
	if !st.archives[0].SessionScheduledAt.Equal(at(2025, 3, 3, 9, 0)) {
		t.Errorf("归档应记录原 scheduled_at，实际 %v", st.archives[0].SessionScheduledAt)
	}
}

func TestSessionService_Reanchor_WithoutArchive(t *testing.T) {
	svc, st := setupTestSessionService()
	svc.cfg = &config.AttendanceConfig{ArchiveOnReanchor: false}
	seedMarkedSession(st, model.SessionStatusOpen)

	if _, err := svc.ReanchorSession(context.Background(), "sess-1", at(2025, 3, 12, 0, 0), testAdminID, "admin"); err != nil {
		t.Fatalf("ReanchorSession 失败: %v", err)
	}
	if len(st.archives) != 0 {
		t.Errorf("关闭归档时不应写归档，实际 %d", len(st.archives))
	}
	if len(st.records) != 0 {
		t.Errorf("旧记录应被清空，剩余 %d", len(st.records))
	}
}

func TestSessionService_Reanchor_TargetWeekHasOpenSession(t *testing.T) {
	svc, st := setupTestSessionService()
	seedMarkedSession(st, model.SessionStatusFinalized)
	seedSession(st, "sess-next", at(2025, 3, 10, 9, 0), model.SessionStatusOpen, testNow)

	_, err := svc.ReanchorSession(context.Background(), "sess-1", at(2025, 3, 12, 0, 0), testAdminID, "admin")
	if !errors.Is(err, ErrWeekHasOpenSession) {
		t.Fatalf("期望 ErrWeekHasOpenSession，实际: %v", err)
	}
	// 整体回滚：记录与状态都不变
	if len(st.records) != 2 || len(st.archives) != 0 {
		t.Errorf("失败后不应有任何改动: records=%d archives=%d", len(st.records), len(st.archives))
	}
	if st.sessions["sess-1"].Status != model.SessionStatusFinalized {
		t.Error("失败后会话状态不应改变")
	}
}

func TestSessionService_Reanchor_NotFound(t *testing.T) {
	svc, _ := setupTestSessionService()

	_, err := svc.ReanchorSession(context.Background(), "nope", testNow, testAdminID, "admin")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("期望 ErrSessionNotFound，实际: %v", err)
	}
}

func TestSessionService_Reanchor_LocksSessionFirst(t *testing.T) {
	svc, st := setupTestSessionService()
	seedMarkedSession(st, model.SessionStatusOpen)

	if _, err := svc.ReanchorSession(context.Background(), "sess-1", at(2025, 3, 12, 0, 0), testTeacherID, "teacher"); err != nil {
		t.Fatalf("ReanchorSession 失败: %v", err)
	}
	if len(st.lockedForUpdate) != 1 || st.lockedForUpdate[0] != "sess-1" {
		t.Errorf("清空记录前应先对会话加排他锁，实际 %v", st.lockedForUpdate)
	}
}

func TestSessionService_Reanchor_OtherTeacherForbidden(t *testing.T) {
	svc, st := setupTestSessionService()
	seedMarkedSession(st, model.SessionStatusOpen)

	_, err := svc.ReanchorSession(context.Background(), "sess-1", at(2025, 3, 12, 0, 0), testOtherID, "teacher")
	if !errors.Is(err, ErrNotLessonTeacher) {
		t.Fatalf("期望 ErrNotLessonTeacher，实际: %v", err)
	}
	if len(st.records) != 2 || len(st.archives) != 0 {
		t.Errorf("被拒绝时不应清空记录: records=%d archives=%d", len(st.records), len(st.archives))
	}
	if !st.sessions["sess-1"].ScheduledAt.Equal(at(2025, 3, 3, 9, 0)) {
		t.Error("被拒绝时会话不应移动")
	}

	// 课程教师本人可以操作
	if _, err := svc.ReanchorSession(context.Background(), "sess-1", at(2025, 3, 12, 0, 0), testTeacherID, "teacher"); err != nil {
		t.Errorf("课程教师应可重新锚定: %v", err)
	}
}

// ── OpenSession ──

func TestSessionService_Open_DefaultsToNextOccurrence(t *testing.T) {
	svc, _ := setupTestSessionService()

	resp, err := svc.OpenSession(context.Background(), testLessonID, nil, testTeacherID, "teacher")
	if err != nil {
		t.Fatalf("OpenSession 失败: %v", err)
	}
	// 现在是周三，周一的课 → 下周一 3/10 09:00
	if want := at(2025, 3, 10, 9, 0).Format(time.RFC3339); resp.ScheduledAt != want {
		t.Errorf("scheduled_at 期望 %s，实际 %s", want, resp.ScheduledAt)
	}
	if resp.Lesson == nil || resp.Lesson.GroupName != "高一(3)班" || resp.Lesson.StartTime != "09:00" {
		t.Errorf("响应应带课程信息: %+v", resp.Lesson)
	}
}

func TestSessionService_Open_ExplicitDate(t *testing.T) {
	svc, _ := setupTestSessionService()
	date := time.Date(2025, 3, 4, 0, 0, 0, 0, shanghai)

	resp, err := svc.OpenSession(context.Background(), testLessonID, &date, testTeacherID, "teacher")
	if err != nil {
		t.Fatalf("OpenSession 失败: %v", err)
	}
	if want := at(2025, 3, 4, 9, 0).Format(time.RFC3339); resp.ScheduledAt != want {
		t.Errorf("scheduled_at 期望 %s，实际 %s", want, resp.ScheduledAt)
	}
}

func TestSessionService_Open_OtherTeacherForbidden(t *testing.T) {
	svc, st := setupTestSessionService()

	_, err := svc.OpenSession(context.Background(), testLessonID, nil, testOtherID, "teacher")
	if !errors.Is(err, ErrNotLessonTeacher) {
		t.Errorf("期望 ErrNotLessonTeacher，实际: %v", err)
	}
	if len(st.sessions) != 0 {
		t.Error("被拒绝时不应创建会话")
	}

	if _, err := svc.OpenSession(context.Background(), testLessonID, nil, testAdminID, "admin"); err != nil {
		t.Errorf("管理员可打开任意课程: %v", err)
	}
}

// ── 视图 ──

func TestSessionService_GetSessionRoster(t *testing.T) {
	svc, st := setupTestSessionService()
	seedSession(st, "sess-1", at(2025, 3, 3, 9, 0), model.SessionStatusOpen, testNow)
	late := 7
	st.records["rec-1"] = &model.AttendanceRecord{
		RecordID: "rec-1", SessionID: "sess-1", StudentID: "stu-3",
		Status: model.AttendanceLate, LateMinutes: &late, MarkedAt: testNow, MarkedBy: testTeacherID, Version: 2,
	}

	roster, err := svc.GetSessionRoster(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetSessionRoster 失败: %v", err)
	}
	if len(roster.Students) != 3 {
		t.Fatalf("只列出在读学生，期望 3 人，实际 %d", len(roster.Students))
	}
	// 按姓排序（码位）：张 < 李 < 王
	order := []string{roster.Students[0].StudentID, roster.Students[1].StudentID, roster.Students[2].StudentID}
	if order[0] != "stu-1" || order[1] != "stu-2" || order[2] != "stu-3" {
		t.Errorf("排序不符: %v", order)
	}
	for _, e := range roster.Students {
		switch e.StudentID {
		case "stu-3":
			if e.Status != model.AttendanceLate || e.Version == nil || *e.Version != 2 || e.LateMinutes == nil || *e.LateMinutes != 7 {
				t.Errorf("已有记录应合并进点名表: %+v", e)
			}
		default:
			if e.Status != model.AttendancePresent || e.Version != nil {
				t.Errorf("未标记学生默认出勤且无版本: %+v", e)
			}
		}
	}
}

func TestSessionService_ListOpenSessions(t *testing.T) {
	svc, st := setupTestSessionService()
	seedSession(st, "sess-old", at(2025, 2, 24, 9, 0), model.SessionStatusOpen, testNow)
	seedSession(st, "sess-new", at(2025, 3, 3, 9, 0), model.SessionStatusOpen, testNow)
	seedSession(st, "sess-done", at(2025, 2, 17, 9, 0), model.SessionStatusFinalized, testNow)
	other := seedSession(st, "sess-other", at(2025, 3, 4, 9, 0), model.SessionStatusOpen, testNow)
	other.TeacherID = testOtherID

	mine, err := svc.ListOpenSessions(context.Background(), dto.SessionListQuery{}, testTeacherID, "teacher")
	if err != nil {
		t.Fatalf("ListOpenSessions 失败: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != "sess-new" || mine[1].ID != "sess-old" {
		t.Errorf("教师只看自己的开放会话，最新在前: %+v", mine)
	}

	all, err := svc.ListOpenSessions(context.Background(), dto.SessionListQuery{}, testAdminID, "admin")
	if err != nil {
		t.Fatalf("ListOpenSessions 失败: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("管理员应看到全部 3 个开放会话，实际 %d", len(all))
	}
}

func TestSessionService_ListOpenSessions_Filters(t *testing.T) {
	svc, st := setupTestSessionService()
	st.lessons["lesson-thu"] = &model.Lesson{
		LessonID: "lesson-thu", Title: "Physics 物理", GroupID: "group-2", TeacherID: testOtherID,
		DayOfWeek: 4, StartTime: "14:00:00", EndTime: "15:00:00", IsActive: true,
	}
	seedSession(st, "sess-mon", at(2025, 3, 3, 9, 0), model.SessionStatusOpen, testNow)
	thu := seedSession(st, "sess-thu", at(2025, 3, 6, 14, 0), model.SessionStatusOpen, testNow)
	thu.LessonID, thu.GroupID, thu.TeacherID = "lesson-thu", "group-2", testOtherID

	tests := []struct {
		name   string
		query  dto.SessionListQuery
		caller string
		role   string
		want   []string
	}{
		{"按班级", dto.SessionListQuery{GroupID: "group-2"}, testAdminID, "admin", []string{"sess-thu"}},
		{"按教师", dto.SessionListQuery{TeacherID: testTeacherID}, testAdminID, "admin", []string{"sess-mon"}},
		{"按星期", dto.SessionListQuery{DayOfWeek: 1}, testAdminID, "admin", []string{"sess-mon"}},
		{"按课程名不区分大小写", dto.SessionListQuery{LessonTitle: " physics "}, testAdminID, "admin", []string{"sess-thu"}},
		{"条件组合无结果", dto.SessionListQuery{GroupID: "group-2", DayOfWeek: 1}, testAdminID, "admin", nil},
		{"教师不能查看他人", dto.SessionListQuery{TeacherID: testOtherID}, testTeacherID, "teacher", []string{"sess-mon"}},
		{"教师按课程名筛选自己的", dto.SessionListQuery{LessonTitle: "物理"}, testTeacherID, "teacher", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.ListOpenSessions(context.Background(), tt.query, tt.caller, tt.role)
			if err != nil {
				t.Fatalf("ListOpenSessions 失败: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("期望 %v，实际 %+v", tt.want, got)
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("第 %d 项期望 %s，实际 %s", i, tt.want[i], got[i].ID)
				}
			}
		})
	}
}

func TestSessionService_GetWeekOverview(t *testing.T) {
	svc, st := setupTestSessionService()
	st.lessons["lesson-fri"] = &model.Lesson{
		LessonID: "lesson-fri", Title: "物理", GroupID: testGroupID, TeacherID: testTeacherID,
		DayOfWeek: 5, StartTime: "14:00:00", EndTime: "15:30:00", IsActive: true,
	}
	seedSession(st, "sess-1", at(2025, 3, 3, 9, 0), model.SessionStatusFinalized, testNow)

	// 以周日查询，仍是 3/3 那一周
	week, err := svc.GetWeekOverview(context.Background(), at(2025, 3, 9, 20, 0), testTeacherID, "teacher")
	if err != nil {
		t.Fatalf("GetWeekOverview 失败: %v", err)
	}
	if week.WeekStart != "2025-03-03" || week.WeekEnd != "2025-03-10" {
		t.Errorf("周窗口错误: %s ~ %s", week.WeekStart, week.WeekEnd)
	}
	if len(week.Days) != 7 {
		t.Fatalf("期望 7 天，实际 %d", len(week.Days))
	}

	mon := week.Days[0]
	if len(mon.Lessons) != 1 || mon.Lessons[0].SessionID == nil || *mon.Lessons[0].SessionID != "sess-1" {
		t.Errorf("周一应关联 sess-1: %+v", mon.Lessons)
	}
	fri := week.Days[4]
	if fri.Date != "2025-03-07" || len(fri.Lessons) != 1 || fri.Lessons[0].SessionID != nil {
		t.Errorf("周五课程尚无会话: %+v", fri)
	}
	if len(st.sessions) != 1 {
		t.Error("周视图不应创建会话")
	}
}

func TestSessionService_ListArchivedRecords(t *testing.T) {
	svc, st := setupTestSessionService()
	seedMarkedSession(st, model.SessionStatusFinalized)

	if _, err := svc.ReanchorSession(context.Background(), "sess-1", at(2025, 3, 10, 0, 0), testAdminID, "admin"); err != nil {
		t.Fatalf("ReanchorSession 失败: %v", err)
	}

	archived, err := svc.ListArchivedRecords(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("ListArchivedRecords 失败: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("期望 2 条归档，实际 %d", len(archived))
	}
	if archived[0].Status != model.AttendanceAbsent {
		t.Errorf("归档应保留原状态，实际 %s", archived[0].Status)
	}
}
