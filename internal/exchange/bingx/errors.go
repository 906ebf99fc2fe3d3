package bingx

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"bingx-relay/internal/core"
)

const (
	apiCodeOrderNotExist      = 80018
	apiCodeInsufficientMargin = 101204
	apiCodeNoPosition         = 101205
	apiCodeOrderRejected      = 101400
)

var apiErrorMessageKinds = map[string]error{
	"insufficient margin":      core.ErrInsufficientBalance,
	"insufficient balance":     core.ErrInsufficientBalance,
	"order not exist":          core.ErrOrderNotFound,
	"order does not exist":     core.ErrOrderNotFound,
	"the order does not exist": core.ErrOrderNotFound,
	"no position to close":     core.ErrPositionNotFound,
	"position does not exist":  core.ErrPositionNotFound,
}

// parseAPIError builds the error for a non-2xx response. The exchange payload
// is kept verbatim when it is JSON; otherwise the text body is reported.
func parseAPIError(status int, body []byte) error {
	apiErr := APIError{Status: status}
	trimmed := bytes.TrimSpace(body)
	var payload apiError
	if len(trimmed) > 0 && json.Valid(trimmed) {
		apiErr.Body = append(json.RawMessage(nil), trimmed...)
		if err := json.Unmarshal(trimmed, &payload); err == nil {
			apiErr.Code, _ = strconv.Atoi(scalar(payload.Code))
			apiErr.Msg = payload.Msg
		}
	} else {
		apiErr.Body = json.RawMessage(strconv.Quote(string(trimmed)))
		apiErr.Msg = string(trimmed)
	}
	return classifyAPIError(apiErr)
}

// envelopeError reports the {code != 0} failures the exchange sends with HTTP 200.
func envelopeError(status int, body []byte) (error, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var payload apiError
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, false
	}
	code, err := strconv.Atoi(scalar(payload.Code))
	if err != nil || code == 0 {
		return nil, false
	}
	return classifyAPIError(APIError{
		Status: status,
		Code:   code,
		Msg:    payload.Msg,
		Body:   append(json.RawMessage(nil), trimmed...),
	}), true
}

func classifyAPIError(apiErr APIError) error {
	kinds := classifyAPIErrorKinds(apiErr)
	if len(kinds) == 0 {
		return apiErr
	}
	errChain := make([]error, 0, 1+len(kinds))
	errChain = append(errChain, apiErr)
	errChain = append(errChain, kinds...)
	return errors.Join(errChain...)
}

func classifyAPIErrorKinds(apiErr APIError) []error {
	kinds := make([]error, 0, 2)
	normalizedMsg := normalizeAPIErrorMsg(apiErr.Msg)

	switch apiErr.Code {
	case apiCodeOrderNotExist:
		kinds = appendErrorKind(kinds, core.ErrOrderNotFound)
	case apiCodeInsufficientMargin:
		kinds = appendErrorKind(kinds, core.ErrInsufficientBalance)
	case apiCodeNoPosition:
		kinds = appendErrorKind(kinds, core.ErrPositionNotFound)
	case apiCodeOrderRejected:
		kinds = appendErrorKind(kinds, core.ErrOrderRejected)
	}

	if kind, ok := apiErrorMessageKinds[normalizedMsg]; ok {
		kinds = appendErrorKind(kinds, kind)
	}

	return kinds
}

func appendErrorKind(kinds []error, kind error) []error {
	if kind == nil {
		return kinds
	}
	for _, existing := range kinds {
		if existing == kind {
			return kinds
		}
	}
	return append(kinds, kind)
}

func normalizeAPIErrorMsg(msg string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(msg)), ".")
}

func AsAPIError(err error) (APIError, bool) {
	if err == nil {
		return APIError{}, false
	}
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		return APIError{}, false
	}
	return apiErr, true
}

func IsAPIErrorCode(err error, codes ...int) bool {
	apiErr, ok := AsAPIError(err)
	if !ok {
		return false
	}
	for _, code := range codes {
		if apiErr.Code == code {
			return true
		}
	}
	return false
}
