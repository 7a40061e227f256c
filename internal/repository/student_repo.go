package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/atakdmr/student-attendance/internal/model"
)

// StudentRepository 花名册数据访问接口（只读）
type StudentRepository interface {
	// ListActiveByGroup 班级在读学生，按姓、名排序
	ListActiveByGroup(ctx context.Context, groupID string) ([]model.Student, error)
	IsActiveMember(ctx context.Context, groupID, studentID string) (bool, error)
}

type studentRepo struct {
	db *gorm.DB
}

func NewStudentRepo(db *gorm.DB) StudentRepository {
	return &studentRepo{db: db}
}

func (r *studentRepo) ListActiveByGroup(ctx context.Context, groupID string) ([]model.Student, error) {
	var students []model.Student
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Order("last_name ASC, first_name ASC").
		Find(&students).Error
	return students, err
}

func (r *studentRepo) IsActiveMember(ctx context.Context, groupID, studentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Student{}).
		Where("student_id = ? AND group_id = ? AND is_active = ?", studentID, groupID, true).
		Count(&count).Error
	return count > 0, err
}
