package dto

// ── 考勤会话 DTO ──

// OpenSessionRequest 为课程打开（或取回）某天的会话
// Date 为空时使用课程的下一次上课日期
type OpenSessionRequest struct {
	LessonID string `json:"lesson_id" binding:"required,uuid"`
	Date     string `json:"date"      binding:"omitempty,datetime=2006-01-02"`
}

// ReanchorSessionRequest 将会话滚动到新的日期
type ReanchorSessionRequest struct {
	Date string `json:"date" binding:"required,datetime=2006-01-02"`
}

// WeekQuery 周视图查询参数，Date 为空表示本周
type WeekQuery struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// SessionListQuery 开放会话列表的过滤参数
// TeacherID 仅对管理员生效，教师始终只看自己的会话
type SessionListQuery struct {
	GroupID     string `form:"group_id"     binding:"omitempty,uuid"`
	TeacherID   string `form:"teacher_id"   binding:"omitempty,uuid"`
	DayOfWeek   int    `form:"day_of_week"  binding:"omitempty,min=1,max=7"`
	LessonTitle string `form:"lesson_title" binding:"omitempty,max=100"`
}

// ── 响应 ──

// SessionResponse 会话响应
type SessionResponse struct {
	ID          string       `json:"id"`
	LessonID    string       `json:"lesson_id"`
	Lesson      *LessonBrief `json:"lesson,omitempty"`
	GroupID     string       `json:"group_id"`
	TeacherID   string       `json:"teacher_id"`
	ScheduledAt string       `json:"scheduled_at"`
	WeekStart   string       `json:"week_start"`
	Status      string       `json:"status"`
	EndTime     *string      `json:"end_time,omitempty"`
	CreatedAt   string       `json:"created_at"`
}

// LessonBrief 课程简要信息
type LessonBrief struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	DayOfWeek int    `json:"day_of_week"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	GroupName string `json:"group_name,omitempty"`
}

// SessionRosterResponse 可编辑的点名表：班级在读学生 + 已有记录
type SessionRosterResponse struct {
	Session  SessionResponse `json:"session"`
	Students []RosterEntry   `json:"students"`
}

// RosterEntry 点名表中的一行
// Version 为空表示尚无记录，首次提交时不带 version
type RosterEntry struct {
	StudentID     string  `json:"student_id"`
	FullName      string  `json:"full_name"`
	StudentNumber string  `json:"student_number,omitempty"`
	Status        string  `json:"status"`
	LateMinutes   *int    `json:"late_minutes,omitempty"`
	Note          *string `json:"note,omitempty"`
	Version       *int    `json:"version,omitempty"`
	MarkedAt      *string `json:"marked_at,omitempty"`
}

// ArchivedRecordResponse 重新锚定前归档的记录
type ArchivedRecordResponse struct {
	StudentID          string  `json:"student_id"`
	SessionScheduledAt string  `json:"session_scheduled_at"`
	Status             string  `json:"status"`
	LateMinutes        *int    `json:"late_minutes,omitempty"`
	Note               *string `json:"note,omitempty"`
	MarkedAt           string  `json:"marked_at"`
	MarkedBy           string  `json:"marked_by"`
	ArchivedAt         string  `json:"archived_at"`
}
