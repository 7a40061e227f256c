package dto

// ── 周课表 DTO ──

// WeekOverviewResponse 一周课程总览（周一到周日）
type WeekOverviewResponse struct {
	WeekStart string        `json:"week_start"`
	WeekEnd   string        `json:"week_end"` // 不含
	Days      []DayOverview `json:"days"`
}

// DayOverview 某一天的课程
type DayOverview struct {
	DayOfWeek int              `json:"day_of_week"`
	Date      string           `json:"date"`
	Lessons   []LessonOverview `json:"lessons"`
}

// LessonOverview 课程及其本周对应的会话（可能尚未创建）
type LessonOverview struct {
	LessonID      string  `json:"lesson_id"`
	Title         string  `json:"title"`
	GroupName     string  `json:"group_name,omitempty"`
	TeacherID     string  `json:"teacher_id"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	SessionID     *string `json:"session_id,omitempty"`
	SessionStatus *string `json:"session_status,omitempty"`
}
