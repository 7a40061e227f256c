package model

import "time"

// Group 班级，对应 groups（由外部管理流程维护）
type Group struct {
	GroupID   string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"group_id"`
	Name      string    `gorm:"type:varchar(100);not null"                     json:"name"`
	Code      string    `gorm:"type:varchar(50)"                               json:"code,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (Group) TableName() string { return "groups" }

// Student 学生，对应 students
// 一个学生同一时间只属于一个班级；仅在读的学生参与新的考勤
type Student struct {
	StudentID     string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"student_id"`
	GroupID       string    `gorm:"type:uuid;not null"                             json:"group_id"`
	FirstName     string    `gorm:"type:varchar(50);not null"                      json:"first_name"`
	LastName      string    `gorm:"type:varchar(50);not null"                      json:"last_name"`
	StudentNumber string    `gorm:"type:varchar(30)"                               json:"student_number,omitempty"`
	Phone         *string   `gorm:"type:varchar(30)"                               json:"phone,omitempty"`
	IsActive      bool      `gorm:"not null;default:true"                          json:"is_active"`
	CreatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (Student) TableName() string { return "students" }

// FullName 姓 + 名
func (s *Student) FullName() string {
	return s.LastName + " " + s.FirstName
}
