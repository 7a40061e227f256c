package dto

// ── 考勤记录 DTO ──

// StudentMark 单个学生的考勤标记
// Version 为客户端上次读到的记录版本；记录不存在时省略
type StudentMark struct {
	StudentID   string  `json:"student_id"   binding:"required,uuid"`
	Status      string  `json:"status"       binding:"required,attendance_status"`
	LateMinutes *int    `json:"late_minutes" binding:"omitempty,min=0,max=600"`
	Note        *string `json:"note"         binding:"omitempty,max=500"`
	Version     *int    `json:"version"      binding:"omitempty,min=1"`
}

// MarkOneRequest 单个学生标记（student_id 取自路径）
type MarkOneRequest struct {
	Status      string  `json:"status"       binding:"required,attendance_status"`
	LateMinutes *int    `json:"late_minutes" binding:"omitempty,min=0,max=600"`
	Note        *string `json:"note"         binding:"omitempty,max=500"`
	Version     *int    `json:"version"      binding:"omitempty,min=1"`
}

// MarkBulkRequest 批量标记，整批原子生效
type MarkBulkRequest struct {
	Marks []StudentMark `json:"marks" binding:"required,min=1,dive"`
}

// RecordResponse 考勤记录响应
type RecordResponse struct {
	ID          string  `json:"id"`
	SessionID   string  `json:"session_id"`
	StudentID   string  `json:"student_id"`
	Status      string  `json:"status"`
	LateMinutes *int    `json:"late_minutes,omitempty"`
	Note        *string `json:"note,omitempty"`
	MarkedAt    string  `json:"marked_at"`
	MarkedBy    string  `json:"marked_by"`
	Version     int     `json:"version"`
}

// MarkBulkResponse 批量标记结果
type MarkBulkResponse struct {
	Applied int `json:"applied"`
}
