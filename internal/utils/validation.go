package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// FormatValidationError formats validation errors into a readable string.
// Only field names and failed rules are reported, never the submitted values.
func FormatValidationError(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		messages := make([]string, 0, len(errs))
		for _, e := range errs {
			if e.Param() != "" {
				messages = append(messages, fmt.Sprintf("%s failed on %s=%s", e.Field(), e.Tag(), e.Param()))
			} else {
				messages = append(messages, fmt.Sprintf("%s failed on %s", e.Field(), e.Tag()))
			}
		}
		return strings.Join(messages, ", ")
	}
	return "malformed request body"
}

// BindAndValidate binds the request body to a struct and checks its `binding`
// tags with gin's validator. If either fails, it sends a BadRequest response
// and returns false.
func BindAndValidate(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		BadRequest(c, "Invalid request payload: "+FormatValidationError(err))
		return false
	}
	return true
}
