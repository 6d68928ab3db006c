package common

import "errors"

// Общие ошибки для всех репозиториев
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrStatusConflict возвращается, когда условный UPDATE по статусу
	// не изменил ни одной строки: текущий статус не совпал с ожидаемым.
	ErrStatusConflict = errors.New("status precondition not met")
)
