package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "viralsafe-backend/internal/common/errors"
)

const (
	MinUsernameLength    = 3
	MaxUsernameLength    = 30
	MaxDisplayNameLength = 50
	MaxBioLength         = 500
	MaxTitleLength       = 200
	MinContentLength     = 1
	MaxContentLength     = 2000
	MaxHashtags          = 10
	MaxHashtagLength     = 50
	MaxModeratorNotes    = 1000
)

var (
	usernameRegex = regexp.MustCompile(`^[a-z0-9]+$`)
	hashtagRegex  = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)

	validate = newValidator()
)

// gin's binding validator reports fields under their JSON names too.
func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonName)
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	return v
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// FieldError describes one rejected field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Result collects field errors; the zero value is a passing result.
type Result struct {
	Errors []FieldError
}

func (r *Result) Add(field, reason string) {
	r.Errors = append(r.Errors, FieldError{Field: field, Reason: reason})
}

// Check records reason for field when err is non-nil.
func (r *Result) Check(field string, err error) {
	if err != nil {
		r.Add(field, err.Error())
	}
}

func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// Err converts the result into a VALIDATION_ERROR, or nil when it passed.
func (r *Result) Err() error {
	if r.OK() {
		return nil
	}
	first := r.Errors[0]
	return apperrors.NewValidationError(first.Field, first.Reason).
		WithDetail("errors", r.Errors)
}

// Struct runs the `validate` tags of v and returns them as a Result.
func Struct(v interface{}) *Result {
	res := &Result{}
	err := validate.Struct(v)
	if err == nil {
		return res
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		res.Add("body", err.Error())
		return res
	}
	for _, fe := range verrs {
		res.Add(fieldPath(fe), describe(fe))
	}
	return res
}

// FromBindError turns a gin binding failure into a VALIDATION_ERROR with per-field details.
// Malformed input that never reached validation becomes BAD_REQUEST with message.
func FromBindError(err error, message string) error {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return apperrors.Wrap(err, apperrors.ErrCodeBadRequest, message)
	}
	res := &Result{}
	for _, fe := range verrs {
		res.Add(fieldPath(fe), describe(fe))
	}
	return res.Err()
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url", "http_url":
		return "must be a valid URL"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// NormalizeWalletAddress validates a 0x-prefixed EVM address and returns it lowercased.
func NormalizeWalletAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("wallet address cannot be empty")
	}
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		return "", fmt.Errorf("wallet address must start with 0x")
	}
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("wallet address must be 0x followed by 40 hex characters")
	}
	return strings.ToLower(address), nil
}

// NormalizeUsername lowercases username and checks it is alphanumeric, 3-30 characters.
func NormalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", fmt.Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return "", fmt.Errorf("username must be at least %d characters long", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return "", fmt.Errorf("username cannot exceed %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return "", fmt.Errorf("username must be alphanumeric")
	}
	return username, nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if err := validate.Var(email, "email"); err != nil {
		return fmt.Errorf("must be a valid email address")
	}
	return nil
}

func ValidateURL(raw string) error {
	if raw == "" {
		return nil
	}
	if err := validate.Var(raw, "http_url"); err != nil {
		return fmt.Errorf("must be a valid http(s) URL")
	}
	return nil
}

// ValidateMaxLength counts runes, not bytes.
func ValidateMaxLength(value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("cannot exceed %d characters", max)
	}
	return nil
}

func ValidateTitle(title string) error {
	return ValidateMaxLength(strings.TrimSpace(title), MaxTitleLength)
}

func ValidateContent(content string) error {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) < MinContentLength {
		return fmt.Errorf("content cannot be empty")
	}
	return ValidateMaxLength(content, MaxContentLength)
}

// NormalizeHashtags lowercases tags, strips '#', drops empties and duplicates.
func NormalizeHashtags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(strings.ReplaceAll(tag, "#", "")))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxHashtagLength {
			return nil, fmt.Errorf("hashtag %q cannot exceed %d characters", tag, MaxHashtagLength)
		}
		if !hashtagRegex.MatchString(tag) {
			return nil, fmt.Errorf("hashtag %q may only contain letters, digits and underscores", tag)
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxHashtags {
		return nil, fmt.Errorf("at most %d hashtags are allowed", MaxHashtags)
	}
	return out, nil
}
