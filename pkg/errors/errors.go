// Package errors 跨层共享的哨兵错误
package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录版本已变化，或同一学生的首条记录已被并发写入
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrStaleState 条件更新未命中：行存在但已不处于期望状态
var ErrStaleState = errors.New("记录状态已变化")
