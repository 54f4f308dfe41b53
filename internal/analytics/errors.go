package analytics

import (
	"errors"
	"fmt"

	"perfdash-service/internal/models"
)

// ErrMissingField возвращается, когда детектору передан показатель, которого нет в таблице
var ErrMissingField = errors.New("missing field")

// MissingFieldError уточняет, какой детектор не нашел какой показатель
type MissingFieldError struct {
	Detector string
	Field    string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: %s %q", e.Detector, ErrMissingField, e.Field)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrMissingField)
func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

// resolveFields возвращает явный список полей или все поля таблицы
func resolveFields(detector string, t *models.Table, fields []string) ([]string, error) {
	if len(fields) == 0 {
		return t.Fields, nil
	}
	for _, f := range fields {
		if !t.HasField(f) {
			return nil, &MissingFieldError{Detector: detector, Field: f}
		}
	}
	return fields, nil
}
