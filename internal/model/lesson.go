package model

// Lesson 每周重复的课程模板，对应 lessons
// 本服务只读；由外部教务流程创建与修改
type Lesson struct {
	LessonID  string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"lesson_id"`
	Title     string `gorm:"type:varchar(100);not null"                     json:"title"`
	GroupID   string `gorm:"type:uuid;not null"                             json:"group_id"`
	TeacherID string `gorm:"type:uuid;not null"                             json:"teacher_id"`
	DayOfWeek int    `gorm:"type:smallint;not null"                         json:"day_of_week"` // ISO: 1=周一 … 7=周日
	StartTime string `gorm:"type:time;not null"                             json:"start_time"`  // HH:MM:SS
	EndTime   string `gorm:"type:time;not null"                             json:"end_time"`
	IsActive  bool   `gorm:"not null;default:true"                          json:"is_active"`
	BaseModel

	// 关联
	Group *Group `gorm:"foreignKey:GroupID;references:GroupID" json:"group,omitempty"`
}

func (Lesson) TableName() string { return "lessons" }
