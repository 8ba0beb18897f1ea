package repositories

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"strings"
)

var (
	ErrDuplicateIdentity   = errors.New("candidate identity already exists")
	ErrSequenceUnavailable = errors.New("id sequence unavailable")
	ErrUnknownStatus       = errors.New("unknown pipeline status")
	ErrNotFound            = errors.New("record not found")
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
