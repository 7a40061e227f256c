package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Lesson  LessonRepository
	Student StudentRepository
	Session SessionRepository
	Record  RecordRepository
	Archive ArchiveRepository

	// Tx 事务执行器；为 nil 时 Transaction 直接在当前仓储上执行
	Tx TxRunner
}

// TxRunner 在一个数据库事务内执行 fn
// fn 拿到的 *Repository 所有读写都绑定在同一事务上；fn 返回错误即整体回滚
type TxRunner interface {
	Transaction(ctx context.Context, fn func(txRepo *Repository) error) error
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Lesson:  NewLessonRepo(db),
		Student: NewStudentRepo(db),
		Session: NewSessionRepo(db),
		Record:  NewRecordRepo(db),
		Archive: NewArchiveRepo(db),
		Tx:      &gormTxRunner{db: db},
	}
}

// Transaction 在事务内执行 fn
func (r *Repository) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	if r.Tx == nil {
		return fn(r)
	}
	return r.Tx.Transaction(ctx, fn)
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g *gormTxRunner) Transaction(ctx context.Context, fn func(txRepo *Repository) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}
