package server

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"bingx-relay/internal/core"
	"bingx-relay/internal/exchange/bingx"
)

type errorEnvelope struct {
	Status     string `json:"status"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Stack      string `json:"stack,omitempty"`
}

type httpError struct {
	status int
	msg    string
}

func (e httpError) Error() string { return e.msg }

func errNotFound(r *http.Request) error {
	return errors.WithStack(httpError{status: http.StatusNotFound, msg: "Cannot " + r.Method + " " + r.URL.Path})
}

func statusFor(err error) int {
	var he httpError
	if errors.As(err, &he) {
		return he.status
	}
	if errors.Is(err, core.ErrValidation) {
		return http.StatusBadRequest
	}
	if apiErr, ok := bingx.AsAPIError(err); ok {
		if apiErr.Status >= http.StatusBadRequest {
			return apiErr.Status
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func messageFor(err error) string {
	if apiErr, ok := bingx.AsAPIError(err); ok {
		return apiErr.Error()
	}
	return err.Error()
}

// writeError renders err as the error envelope. The stack is only exposed in
// development.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	env := errorEnvelope{
		Status:     "error",
		StatusCode: status,
		Message:    messageFor(err),
	}
	if s.devMode {
		env.Stack = fmt.Sprintf("%+v", err)
	}
	if status >= http.StatusInternalServerError {
		s.log.Error().Stack().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	} else {
		s.log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	s.metrics.ObserveHTTPError(status)
	s.writeJSON(w, status, env)
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			s.writeError(w, r, errors.Errorf("panic: %v", rec))
		}()
		next.ServeHTTP(w, r)
	})
}
