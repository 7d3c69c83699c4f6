package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示尝试插入或更新的数据违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrConflict 表示条件更新在重试后仍然失败（并发修改）
	ErrConflict = errors.New("repository: concurrent modification")
	// ErrForbidden 表示记录存在，但请求者不是所有者
	ErrForbidden = errors.New("repository: not the owner")
)

// 特定资源的错误
var (
	ErrUserNotFound = ErrNotFound
	ErrIdeaNotFound = ErrNotFound
)
