package service

import (
	"errors"
	"fmt"

	"idea-board/internal/repository"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already in use")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("not authorized")
	ErrIdeaNotFound       = errors.New("idea not found")
	ErrVoteConflict       = errors.New("vote conflict, please retry")
	ErrInternalServer     = errors.New("internal server error")
)

// validationError 包装 ErrValidation 并附带字段说明。
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapIdeaRepoError 将仓库层错误映射为服务层错误。
func mapIdeaRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrIdeaNotFound):
		return ErrIdeaNotFound
	case errors.Is(err, repository.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, repository.ErrConflict):
		return ErrVoteConflict
	default:
		return ErrInternalServer
	}
}
