package model

import "time"

// 会话状态
const (
	SessionStatusOpen      = "open"
	SessionStatusFinalized = "finalized"
)

// 考勤状态
const (
	AttendancePresent = "present"
	AttendanceAbsent  = "absent"
	AttendanceLate    = "late"
	AttendanceExcused = "excused"
)

// IsValidAttendanceStatus 判断考勤状态取值是否合法
func IsValidAttendanceStatus(s string) bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

// AttendanceSession 考勤会话，对应 attendance_sessions
// GroupID / TeacherID 在创建时从课程复制，课程后续改派不影响历史
type AttendanceSession struct {
	SessionID   string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"session_id"`
	LessonID    string     `gorm:"type:uuid;not null"                             json:"lesson_id"`
	GroupID     string     `gorm:"type:uuid;not null"                             json:"group_id"`
	TeacherID   string     `gorm:"type:uuid;not null"                             json:"teacher_id"`
	ScheduledAt time.Time  `gorm:"not null"                                       json:"scheduled_at"`
	WeekStart   time.Time  `gorm:"type:date;not null"                             json:"week_start"` // 所属 ISO 周的周一
	Status      string     `gorm:"type:varchar(20);not null;default:'open'"       json:"status"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	BaseModel

	// 关联
	Lesson *Lesson `gorm:"foreignKey:LessonID;references:LessonID" json:"lesson,omitempty"`
}

func (AttendanceSession) TableName() string { return "attendance_sessions" }

// IsFinalized 会话是否已定稿
func (s *AttendanceSession) IsFinalized() bool {
	return s.Status == SessionStatusFinalized
}

// AttendanceRecord 考勤记录，对应 attendance_records
// Version 即并发令牌，每次写入递增
type AttendanceRecord struct {
	RecordID    string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"record_id"`
	SessionID   string    `gorm:"type:uuid;not null"                             json:"session_id"`
	StudentID   string    `gorm:"type:uuid;not null"                             json:"student_id"`
	Status      string    `gorm:"type:varchar(20);not null"                      json:"status"`
	LateMinutes *int      `json:"late_minutes,omitempty"`
	Note        *string   `gorm:"type:varchar(500)"                              json:"note,omitempty"`
	MarkedAt    time.Time `gorm:"not null"                                       json:"marked_at"`
	MarkedBy    string    `gorm:"type:uuid;not null"                             json:"marked_by"`
	Version     int       `gorm:"not null;default:1"                             json:"version"`
	CreatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (AttendanceRecord) TableName() string { return "attendance_records" }

// AttendanceRecordArchive 重新锚定前归档的考勤记录，对应 attendance_record_archives
type AttendanceRecordArchive struct {
	ArchiveID          string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"archive_id"`
	SessionID          string    `gorm:"type:uuid;not null"                             json:"session_id"`
	SessionScheduledAt time.Time `gorm:"not null"                                       json:"session_scheduled_at"`
	StudentID          string    `gorm:"type:uuid;not null"                             json:"student_id"`
	Status             string    `gorm:"type:varchar(20);not null"                      json:"status"`
	LateMinutes        *int      `json:"late_minutes,omitempty"`
	Note               *string   `gorm:"type:varchar(500)"                              json:"note,omitempty"`
	MarkedAt           time.Time `gorm:"not null"                                       json:"marked_at"`
	MarkedBy           string    `gorm:"type:uuid;not null"                             json:"marked_by"`
	ArchivedAt         time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"archived_at"`
	ArchivedBy         string    `gorm:"type:uuid;not null"                             json:"archived_by"`
}

func (AttendanceRecordArchive) TableName() string { return "attendance_record_archives" }
