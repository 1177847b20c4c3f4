package routes

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/quatton/qtube/pkg/qerr"
	"github.com/quatton/qtube/pkg/qlog"
)

// apiError turns a service error into the failure envelope. Internal
// details are logged and replaced by a generic message.
func apiError(logger *qlog.Logger, op string, err error) error {
	switch code := qerr.CodeOf(err); code {
	case qerr.CodeInternal, qerr.CodeUnknown:
		logger.Error(op+" failed", "error", err)
		return huma.NewError(http.StatusInternalServerError, "internal server error")
	default:
		return huma.NewError(code.Status(), qerr.MessageOf(err, string(code)))
	}
}
