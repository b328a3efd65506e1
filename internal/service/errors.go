package service

import (
	"fmt"
)

const (
	CodeNotFound             = "NOT_FOUND"
	CodeValidation           = "VALIDATION_ERROR"
	CodeForbidden            = "FORBIDDEN"
	CodeDuplicateApplication = "DUPLICATE_APPLICATION"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeVersionConflict      = "VERSION_CONFLICT"
	CodeAlreadyRated         = "ALREADY_RATED"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}
	return busErr
}

func NewNotFound(resource string, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %s не найден(а)", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
	}
}

func NewForbidden(action string) *BusinessError {
	return &BusinessError{
		Code:    CodeForbidden,
		Message: fmt.Sprintf("Действие '%s' недоступно текущему пользователю", action),
		Details: map[string]any{
			"action": action,
		},
	}
}

func NewInvalidTransition(err error, details ...Detail) *BusinessError {
	busErr := NewBusinessError(CodeInvalidTransition, "Действие недоступно в текущем состоянии", details...)
	busErr.Err = err
	return busErr
}

func NewVersionConflict(resource string, id string) *BusinessError {
	return &BusinessError{
		Code:    CodeVersionConflict,
		Message: fmt.Sprintf("%s %s был(а) изменен(а) параллельно, повторите запрос", resource, id),
		Details: map[string]any{
			"resource": resource,
			"id":       id,
		},
	}
}
