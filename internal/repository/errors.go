package repository

import "errors"

var (
	ErrNotFound        = errors.New("запись не найдена")
	ErrVersionConflict = errors.New("конфликт версий")
	ErrDuplicate       = errors.New("нарушение уникальности")
)

// Pagination по умолчанию для списков
const DefaultLimit = 50

// Offset переводит номер страницы (с 1) в смещение
func Offset(page, limit int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * limit
}
