package cmd

import (
	"log"

	"github.com/quatton/qtube/pkg/qerr"
)

// exitIfSdkError inspects errors returned from the SDK and emits user-friendly
// guidance before exiting. Non-SDK errors fall back to log.Fatalf.
func exitIfSdkError(err error) {
	if err == nil {
		return
	}
	switch {
	case qerr.IsCode(err, qerr.CodeUnauthorized), qerr.IsCode(err, qerr.CodeExpiredToken):
		log.Fatalf("authentication required: run 'qtube auth login' (%v)", err)
	case qerr.IsCode(err, qerr.CodeRefreshFailed):
		log.Fatalf("failed to refresh credentials: run 'qtube auth login' (%v)", err)
	case qerr.IsCode(err, qerr.CodeTooManyAttempts):
		log.Fatalf("too many failed attempts, wait before trying again (%v)", err)
	default:
		log.Fatalf("%v", err)
	}
}
