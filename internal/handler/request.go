package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 8 << 20

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// DiscoverRequest is the body of /api/discover and /api/shared/result.
type DiscoverRequest struct {
	Seeds []string `json:"seeds" validate:"required,min=1,dive,required"`
	// MinConnections defaults to the configured threshold when omitted.
	MinConnections *int   `json:"min_connections,omitempty" validate:"omitempty,gte=1"`
	Direction      string `json:"direction,omitempty" validate:"omitempty,oneof=backlinks outlinks predecessors successors in out"`
}

// SharedRequest is the body of /api/shared.
type SharedRequest struct {
	Seeds []string `json:"seeds" validate:"required,min=1,dive,required"`
	// MinShared of zero or omitted means every resolved seed.
	MinShared *int   `json:"min_shared,omitempty" validate:"omitempty,gte=0"`
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=backlinks outlinks predecessors successors in out"`
}

// ValidateRequest is the body of /api/seeds/validate.
type ValidateRequest struct {
	Seeds []string `json:"seeds" validate:"required,min=1"`
}

// LookupResponse pairs a domain with its vertex id.
type LookupResponse struct {
	Domain string `json:"domain"`
	ID     int64  `json:"id"`
}

// NeighborsResponse lists the neighbors of one domain.
type NeighborsResponse struct {
	Domain    string   `json:"domain"`
	Direction string   `json:"direction"`
	Neighbors []string `json:"neighbors"`
}

// SharedResponse lists shared neighbors.
type SharedResponse struct {
	Direction string   `json:"direction"`
	MinShared int      `json:"min_shared"`
	Domains   []string `json:"domains"`
}

// HealthResponse reports session state.
type HealthResponse struct {
	Status        string  `json:"status"`
	Ready         bool    `json:"ready"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError flattens validator errors into one readable line.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
