package errors

import (
	"github.com/sirupsen/logrus"
)

// LogFields returns the structured fields of an error for logrus entries
func LogFields(err error) logrus.Fields {
	fields := logrus.Fields{}
	appErr, ok := As(err)
	if !ok {
		return fields
	}
	fields["error_code"] = appErr.Code
	for k, v := range appErr.Context {
		fields[k] = v
	}
	return fields
}

// LogError logs an error with its structured context at a level matching its class.
// Caller mistakes log at warn, everything else at error.
func LogError(entry *logrus.Entry, err error, message string) {
	entry = entry.WithError(err).WithFields(LogFields(err))
	switch GetCode(err) {
	case ErrCodeInvalidInput, ErrCodeInvalidConfig, ErrCodeNotFound:
		entry.Warn(message)
	default:
		entry.Error(message)
	}
}
