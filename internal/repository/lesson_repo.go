package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/atakdmr/student-attendance/internal/model"
)

// LessonRepository 课程模板数据访问接口（只读）
type LessonRepository interface {
	GetByID(ctx context.Context, id string) (*model.Lesson, error)
	// ListActive 列出启用的课程；teacherID 为空时返回全部教师的课程
	ListActive(ctx context.Context, teacherID string) ([]model.Lesson, error)
}

type lessonRepo struct {
	db *gorm.DB
}

func NewLessonRepo(db *gorm.DB) LessonRepository {
	return &lessonRepo{db: db}
}

func (r *lessonRepo) GetByID(ctx context.Context, id string) (*model.Lesson, error) {
	var lesson model.Lesson
	err := r.db.WithContext(ctx).
		Preload("Group").
		Where("lesson_id = ?", id).
		First(&lesson).Error
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *lessonRepo) ListActive(ctx context.Context, teacherID string) ([]model.Lesson, error) {
	var lessons []model.Lesson
	q := r.db.WithContext(ctx).
		Preload("Group").
		Where("is_active = ?", true)
	if teacherID != "" {
		q = q.Where("teacher_id = ?", teacherID)
	}
	err := q.Order("day_of_week ASC, start_time ASC, title ASC").Find(&lessons).Error
	return lessons, err
}
