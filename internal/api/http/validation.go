package apihttp

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"moviediscovery/searchservice/internal/domain"
)

const (
	maxQueryLength      = 200
	maxUserIDLength     = 128
	defaultHistoryLimit = 10
	maxHistoryLimit     = 50
)

type aiSearchRequest struct {
	Query  string `validate:"required,max=200"`
	UserID string `validate:"omitempty,max=128"`
}

type movieSearchRequest struct {
	Query string `validate:"required,max=200"`
}

type historyListRequest struct {
	UserID string `validate:"required,max=128"`
	Limit  int    `validate:"min=1,max=50"`
}

type historySaveRequest struct {
	UserID string             `json:"userId" validate:"required,max=128"`
	Query  string             `json:"query" validate:"required,max=200"`
	Movie  domain.MovieRecord `json:"movie"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// validateRequest returns a client-facing message for the first failed rule.
func validateRequest(v any) error {
	err := getValidator().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := jsonFieldName(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", field)
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Errorf("%s too long (max %s characters)", field, fe.Param())
		}
		return fmt.Errorf("%s must be at most %s", field, fe.Param())
	case "min":
		return fmt.Errorf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

func jsonFieldName(field string) string {
	switch field {
	case "UserID":
		return "userId"
	case "Query":
		return "query"
	case "Limit":
		return "limit"
	default:
		if field == "" {
			return field
		}
		return strings.ToLower(field[:1]) + field[1:]
	}
}
