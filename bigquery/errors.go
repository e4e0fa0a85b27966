package bigquery

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/fwojciec/dataops"
	"google.golang.org/api/googleapi"
)

// Classify maps a BigQuery error to an error kind and reports whether the
// failure is transient and worth retrying.
func Classify(ctx context.Context, err error) (dataops.ErrorKind, bool) {
	if err == nil {
		return dataops.ErrorKindNone, false
	}
	if errors.Is(err, context.DeadlineExceeded) || (ctx != nil && errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		return dataops.ErrorKindTimeout, false
	}
	if errors.Is(err, context.Canceled) {
		return dataops.ErrorKindInternal, false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		for _, item := range gerr.Errors {
			if kind, transient, ok := classifyReason(item.Reason); ok {
				return kind, transient
			}
		}
		return classifyCode(gerr.Code)
	}
	var berr *bigquery.Error
	if errors.As(err, &berr) {
		if kind, transient, ok := classifyReason(berr.Reason); ok {
			return kind, transient
		}
		return dataops.ErrorKindInternal, false
	}
	var multi bigquery.MultiError
	if errors.As(err, &multi) && len(multi) > 0 {
		return Classify(ctx, multi[0])
	}
	return dataops.ErrorKindInternal, true
}

func classifyReason(reason string) (dataops.ErrorKind, bool, bool) {
	switch reason {
	case "invalidQuery", "invalid":
		return dataops.ErrorKindSyntax, false, true
	case "notFound":
		return dataops.ErrorKindNotFound, false, true
	case "accessDenied":
		return dataops.ErrorKindPermission, false, true
	case "quotaExceeded", "billingTierLimitExceeded", "bytesBilledLimitExceeded", "responseTooLarge":
		return dataops.ErrorKindQuota, false, true
	case "timeout", "jobTimeout":
		return dataops.ErrorKindTimeout, false, true
	case "rateLimitExceeded", "backendError", "internalError":
		return dataops.ErrorKindInternal, true, true
	}
	return "", false, false
}

func classifyCode(code int) (dataops.ErrorKind, bool) {
	switch {
	case code == http.StatusBadRequest:
		return dataops.ErrorKindSyntax, false
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return dataops.ErrorKindPermission, false
	case code == http.StatusNotFound:
		return dataops.ErrorKindNotFound, false
	case code == http.StatusTooManyRequests || code >= 500:
		return dataops.ErrorKindInternal, true
	}
	return dataops.ErrorKindInternal, false
}

// errorMessage extracts the user-facing message from err.
func errorMessage(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Message != "" {
			return gerr.Message
		}
		for _, item := range gerr.Errors {
			if item.Message != "" {
				return item.Message
			}
		}
	}
	var berr *bigquery.Error
	if errors.As(err, &berr) && berr.Message != "" {
		return berr.Message
	}
	return strings.TrimPrefix(err.Error(), "googleapi: ")
}
