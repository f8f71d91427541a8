package codeblock

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/zoro-md/zoro/internal/domain"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func blockValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// checkRaw runs the struct tags over the parsed block and folds the
// first failure into a domain ValidationError
func checkRaw(raw rawBlock) error {
	err := blockValidator().Struct(raw)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		fe := errs[0]
		return &domain.ValidationError{
			Field:  strings.ToLower(fe.Field()),
			Reason: tagReason(fe),
		}
	}
	return &domain.ValidationError{Field: "block", Reason: err.Error()}
}

func tagReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
