package logger

import (
	"errors"
	"strings"

	"github.com/localrivet/kbrag/internal/errortypes"
)

// LogError logs an error through the default logger. Structured errors from
// the errortypes package carry their type, fields, and a trimmed stack.
func LogError(err error) {
	var appErr *errortypes.AppError
	if errors.As(err, &appErr) {
		fields := make(map[string]interface{}, len(appErr.Fields)+2)
		for k, v := range appErr.Fields {
			fields[k] = v
		}
		fields["error_type"] = string(appErr.Type)

		if stack := topFrames(appErr.StackInfo, 3); stack != "" {
			fields["stack"] = stack
		}

		GetDefaultLogger().WithFields(fields).Error(appErr.Error())
		return
	}

	Error("Unstructured error: %v", err)
}

// topFrames keeps the first n lines of a captured stack trace
func topFrames(stack string, n int) string {
	if stack == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(stack), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, " > ")
}
