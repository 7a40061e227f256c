package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/atakdmr/student-attendance/internal/model"
)

// ArchiveRepository 考勤记录归档数据访问接口
type ArchiveRepository interface {
	BatchCreate(ctx context.Context, archives []model.AttendanceRecordArchive) error
	ListBySession(ctx context.Context, sessionID string) ([]model.AttendanceRecordArchive, error)
}

type archiveRepo struct {
	db *gorm.DB
}

func NewArchiveRepo(db *gorm.DB) ArchiveRepository {
	return &archiveRepo{db: db}
}

func (r *archiveRepo) BatchCreate(ctx context.Context, archives []model.AttendanceRecordArchive) error {
	if len(archives) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&archives, 200).Error
}

func (r *archiveRepo) ListBySession(ctx context.Context, sessionID string) ([]model.AttendanceRecordArchive, error) {
	var archives []model.AttendanceRecordArchive
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("session_scheduled_at DESC, student_id ASC").
		Find(&archives).Error
	return archives, err
}
