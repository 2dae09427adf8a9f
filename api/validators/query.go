package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/omarkhalifa/laundryops-backend/pkg/enums"
	pkgerrors "github.com/omarkhalifa/laundryops-backend/pkg/errors"
)

// QueryInt reads an integer query parameter, falling back when absent.
func QueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be an integer", name))
	}
	return value, nil
}

// QueryUUID reads an optional uuid query parameter.
func QueryUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be a uuid", name))
	}
	return &id, nil
}

// QueryStatuses parses a comma-separated status filter.
func QueryStatuses(r *http.Request, name string) ([]enums.DeliveryStatus, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]enums.DeliveryStatus, 0, len(parts))
	for _, part := range parts {
		status, err := enums.ParseDeliveryStatus(strings.TrimSpace(part))
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
		}
		out = append(out, status)
	}
	return out, nil
}

// QueryBool reads a boolean query parameter, treating absence as false.
func QueryBool(r *http.Request, name string) bool {
	raw := strings.ToLower(r.URL.Query().Get(name))
	return raw == "true" || raw == "1"
}

// PathUUID parses a uuid path segment extracted by the router.
func PathUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be a uuid", name))
	}
	return id, nil
}
