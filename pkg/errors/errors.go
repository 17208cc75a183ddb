package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCanceled      ErrorCode = "CANCELED"

	// Configuration errors, detected before any output is written
	ErrConfigLoad     ErrorCode = "CONFIG_LOAD"
	ErrConfigParse    ErrorCode = "CONFIG_PARSE"
	ErrConfigInvalid  ErrorCode = "CONFIG_INVALID"
	ErrPatternInvalid ErrorCode = "PATTERN_INVALID"
	ErrPluginMissing  ErrorCode = "PLUGIN_MISSING"
	ErrPluginUnknown  ErrorCode = "PLUGIN_UNKNOWN"
	ErrToolUnknown    ErrorCode = "TOOL_UNKNOWN"
	ErrEmptyMatch     ErrorCode = "EMPTY_MATCH"

	// Resource errors
	ErrAssetSourceMissing ErrorCode = "ASSET_SOURCE_MISSING"
	ErrSourceMissing      ErrorCode = "SOURCE_MISSING"
	ErrFileAccess         ErrorCode = "FILE_ACCESS"
	ErrFileWrite          ErrorCode = "FILE_WRITE"
	ErrDirCreate          ErrorCode = "DIR_CREATE"
	ErrOutputIncomplete   ErrorCode = "OUTPUT_INCOMPLETE"

	// Transform errors
	ErrTransform      ErrorCode = "TRANSFORM"
	ErrComponentParse ErrorCode = "COMPONENT_PARSE"

	// Outer surfaces
	ErrVerify  ErrorCode = "VERIFY"
	ErrPublish ErrorCode = "PUBLISH"
	ErrServe   ErrorCode = "SERVE"
)

// Category groups error codes by how a build reacts to them
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryResource  Category = "resource"
	CategoryTransform Category = "transform"
	CategoryInternal  Category = "internal"
)

var categories = map[ErrorCode]Category{
	ErrInvalidInput:       CategoryConfig,
	ErrConfigLoad:         CategoryConfig,
	ErrConfigParse:        CategoryConfig,
	ErrConfigInvalid:      CategoryConfig,
	ErrPatternInvalid:     CategoryConfig,
	ErrPluginMissing:      CategoryConfig,
	ErrPluginUnknown:      CategoryConfig,
	ErrToolUnknown:        CategoryConfig,
	ErrEmptyMatch:         CategoryConfig,
	ErrAssetSourceMissing: CategoryResource,
	ErrSourceMissing:      CategoryResource,
	ErrFileAccess:         CategoryResource,
	ErrFileWrite:          CategoryResource,
	ErrDirCreate:          CategoryResource,
	ErrOutputIncomplete:   CategoryResource,
	ErrNotFound:           CategoryResource,
	ErrTransform:          CategoryTransform,
	ErrComponentParse:     CategoryTransform,
	ErrVerify:             CategoryResource,
	ErrPublish:            CategoryResource,
}

// BuildError represents a structured error with code and details
type BuildError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *BuildError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *BuildError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface
func (e *BuildError) Is(target error) bool {
	var targetErr *BuildError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new BuildError with the given code and message
func New(code ErrorCode, message string) *BuildError {
	return &BuildError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new BuildError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *BuildError {
	return &BuildError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a BuildError
func Wrap(err error, code ErrorCode, message string) *BuildError {
	if err == nil {
		return nil
	}
	return &BuildError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *BuildError {
	if err == nil {
		return nil
	}
	return &BuildError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *BuildError) WithDetail(key string, value interface{}) *BuildError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithPath records the file the error is about
func (e *BuildError) WithPath(path string) *BuildError {
	return e.WithDetail("path", path)
}

// IsErrorCode checks if an error has a specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Code == code
	}
	return false
}

// GetErrorCode returns the outermost error code, or ErrUnknown if not a BuildError
func GetErrorCode(err error) ErrorCode {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Code
	}
	return ErrUnknown
}

// GetErrorDetails returns the details from an error, or nil if not a BuildError
func GetErrorDetails(err error) map[string]interface{} {
	var buildErr *BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Details
	}
	return nil
}

// PathOf returns the "path" detail of the first BuildError in the chain that has one
func PathOf(err error) string {
	for err != nil {
		var buildErr *BuildError
		if !errors.As(err, &buildErr) {
			return ""
		}
		if p, ok := buildErr.Details["path"].(string); ok && p != "" {
			return p
		}
		err = buildErr.Wrapped
	}
	return ""
}

// generic codes describe a lookup rather than a build concern. They decide the
// category only when nothing more specific wraps them.
var generic = map[ErrorCode]bool{
	ErrNotFound:      true,
	ErrAlreadyExists: true,
}

// CategoryOf walks the chain and returns the category of the innermost coded
// error. Wrappers such as "build failed" must not hide a configuration or
// resource cause, and a generic registry miss must not hide the specific code
// that wraps it.
func CategoryOf(err error) Category {
	category := CategoryInternal
	specific := false
	for err != nil {
		var buildErr *BuildError
		if !errors.As(err, &buildErr) {
			break
		}
		if c, ok := categories[buildErr.Code]; ok {
			switch {
			case !generic[buildErr.Code]:
				category = c
				specific = true
			case !specific:
				category = c
			}
		}
		err = buildErr.Wrapped
	}
	return category
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch CategoryOf(err) {
	case CategoryConfig:
		return 2
	case CategoryResource:
		return 3
	case CategoryTransform:
		return 4
	default:
		return 1
	}
}

// Is and As re-export the standard helpers so callers need a single import
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }
