package session

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"vidchat/backend/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ConnectParams are the raw, client-asserted values sent with the handshake.
type ConnectParams struct {
	ID       string `validate:"required,number"`
	Gender   string `validate:"required,oneof=male female"`
	Username string `validate:"required,max=64"`
	IsMobile string `validate:"required,oneof=true false"`
	CameraOn string
	AudioOn  string
}

// ParamsFromQuery reads the handshake parameters from a query string.
func ParamsFromQuery(q url.Values) ConnectParams {
	return ConnectParams{
		ID:       q.Get("id"),
		Gender:   q.Get("gender"),
		Username: q.Get("username"),
		IsMobile: q.Get("isMobile"),
		CameraOn: q.Get("cameraOn"),
		AudioOn:  q.Get("audioOn"),
	}
}

// ValidationError lists every rejected handshake field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid connection parameters: " + strings.Join(parts, "; ")
}

// ParseCandidate validates p and builds the user record for connID.
// Camera and audio default to on unless explicitly "false".
func ParseCandidate(connID string, p ConnectParams) (*models.User, error) {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate connection parameters: %w", err)
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldName(fe.Field())] = describe(fe)
		}
		return nil, &ValidationError{Fields: fields}
	}

	id, err := strconv.ParseInt(p.ID, 10, 64)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"id": "must be an integer"}}
	}

	return &models.User{
		ID:       id,
		ConnID:   connID,
		Gender:   models.Gender(p.Gender),
		Username: p.Username,
		IsMobile: p.IsMobile == "true",
		CameraOn: p.CameraOn != "false",
		AudioOn:  p.AudioOn != "false",
	}, nil
}

func fieldName(structField string) string {
	switch structField {
	case "ID":
		return "id"
	case "IsMobile":
		return "isMobile"
	default:
		return strings.ToLower(structField[:1]) + structField[1:]
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "number":
		return "must be a number"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}
