package validation

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"messengerhub/internal/constants"
	"messengerhub/internal/errors"

	"github.com/go-playground/validator/v10"
)

// MissingFieldsMessage is returned when a required request field is empty
const MissingFieldsMessage = "Missing required fields"

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. Field errors carry the json name of the field.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
	})
	return validate
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

// Struct validates a request struct by its `validate` tags.
// Any failed `required` rule collapses into MissingFieldsMessage.
func Struct(req interface{}) error {
	err := Validator().Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}

	fields := make([]string, 0, len(verrs))
	missing := false
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
		if fe.Tag() == "required" {
			missing = true
		}
	}

	if missing {
		return errors.NewValidationError(strings.Join(fields, ","), MissingFieldsMessage)
	}
	fe := verrs[0]
	return errors.NewValidationError(fe.Field(), fmt.Sprintf("invalid %s", fe.Field()))
}

// ValidatePSID checks a page-scoped id is a non-empty decimal string of bounded length
func ValidatePSID(psid string) error {
	if psid == "" {
		return errors.New(errors.ErrCodeInvalidInput, "psid cannot be empty")
	}
	if len(psid) > constants.MaxPSIDLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("psid too long (max %d characters)", constants.MaxPSIDLength))
	}
	for _, c := range psid {
		if c < '0' || c > '9' {
			return errors.New(errors.ErrCodeInvalidInput, "psid must contain only digits")
		}
	}
	return nil
}

// ValidateConversationID checks a conversation id has the fb_{page}_{psid} shape
func ValidateConversationID(conversationID string) error {
	parts := strings.SplitN(conversationID, "_", 3)
	if len(parts) != 3 || parts[0] != constants.ConversationIDPrefix || parts[1] == "" || parts[2] == "" {
		return errors.NewValidationError("conversation_id", "invalid conversation id")
	}
	return nil
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateImageUpload checks an uploaded image has a name, content, an image type and fits the size limit.
// An empty contentType is sniffed from data.
func ValidateImageUpload(filename, contentType string, data []byte, maxBytes int64) error {
	if filename == "" || len(data) == 0 {
		return errors.NewValidationError("image", "No image file provided")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return errors.NewValidationError("image",
			fmt.Sprintf("Image exceeds maximum size of %d bytes", maxBytes))
	}
	if strings.Contains(filepath.Base(filename), "..") || strings.ContainsAny(filename, "\x00/\\") {
		return errors.NewValidationError("image", "Invalid image filename")
	}

	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	if !allowedImageTypes[strings.TrimSpace(strings.ToLower(mediaType))] {
		return errors.NewValidationError("image", "Unsupported image type "+mediaType)
	}
	return nil
}
