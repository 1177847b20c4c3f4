package schemas

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Envelope wraps every successful response body.
type Envelope[T any] struct {
	StatusCode int    `json:"statusCode" doc:"HTTP status code, repeated in the body"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func OK[T any](data T, message string) Envelope[T] {
	return Envelope[T]{StatusCode: http.StatusOK, Data: data, Message: message, Success: true}
}

func Created[T any](data T, message string) Envelope[T] {
	return Envelope[T]{StatusCode: http.StatusCreated, Data: data, Message: message, Success: true}
}

// ErrorEnvelope is the body of every failed response, including the ones
// huma produces itself for malformed requests.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

func (e *ErrorEnvelope) Error() string  { return e.Message }
func (e *ErrorEnvelope) GetStatus() int { return e.StatusCode }

// NewError matches huma.NewError and is installed in its place.
func NewError(status int, msg string, errs ...error) huma.StatusError {
	details := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			details = append(details, err.Error())
		}
	}
	return &ErrorEnvelope{
		StatusCode: status,
		Message:    msg,
		Success:    false,
		Errors:     details,
	}
}

var _ huma.StatusError = (*ErrorEnvelope)(nil)
