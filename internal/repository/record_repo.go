package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/atakdmr/student-attendance/internal/model"
	pkgerrors "github.com/atakdmr/student-attendance/pkg/errors"
)

// RecordRepository 考勤记录数据访问接口
type RecordRepository interface {
	GetBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*model.AttendanceRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error)
	// Create 首次写入；(session, student) 已存在时返回 pkgerrors.ErrOptimisticLock
	Create(ctx context.Context, record *model.AttendanceRecord) error
	// Update 以 record.Version 为期望版本做条件更新，成功后 Version+1
	Update(ctx context.Context, record *model.AttendanceRecord) error
	DeleteBySession(ctx context.Context, sessionID string) (int64, error)
}

type recordRepo struct {
	db *gorm.DB
}

func NewRecordRepo(db *gorm.DB) RecordRepository {
	return &recordRepo{db: db}
}

func (r *recordRepo) GetBySessionAndStudent(ctx context.Context, sessionID, studentID string) (*model.AttendanceRecord, error) {
	var record model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND student_id = ?", sessionID, studentID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *recordRepo) ListBySession(ctx context.Context, sessionID string) ([]model.AttendanceRecord, error) {
	var records []model.AttendanceRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("student_id ASC").
		Find(&records).Error
	return records, err
}

func (r *recordRepo) Create(ctx context.Context, record *model.AttendanceRecord) error {
	record.Version = 1
	err := r.db.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrOptimisticLock
	}
	return err
}

func (r *recordRepo) Update(ctx context.Context, record *model.AttendanceRecord) error {
	oldVersion := record.Version
	result := r.db.WithContext(ctx).
		Model(&model.AttendanceRecord{}).
		Where("record_id = ? AND version = ?", record.RecordID, oldVersion).
		Updates(map[string]interface{}{
			"status":       record.Status,
			"late_minutes": record.LateMinutes,
			"note":         record.Note,
			"marked_at":    record.MarkedAt,
			"marked_by":    record.MarkedBy,
			"updated_at":   record.MarkedAt,
			"version":      oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	record.Version = oldVersion + 1
	return nil
}

func (r *recordRepo) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.AttendanceRecord{})
	return result.RowsAffected, result.Error
}
