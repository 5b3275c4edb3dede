package chain

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/Djtrixuk/moltydex-sub000/internal/pkg/apperrors"
)

// Classify folds a raw upstream error into the failure taxonomy. This is
// the single place provider-specific error shapes are inspected; everything
// downstream sees only a category.
func Classify(err error) apperrors.Category {
	if err == nil {
		return apperrors.CatInternal
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.CatTransientNetwork
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 429:
			return apperrors.CatRateLimited
		case httpErr.Status == 403 || httpErr.Status == 401:
			return apperrors.CatRateLimited
		case httpErr.Status >= 500:
			return apperrors.CatServerUnavailable
		case httpErr.Status >= 400:
			return apperrors.CatValidation
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.CatTransientNetwork
	}

	s := strings.ToLower(err.Error())

	// JSON-RPC request-shape errors are never worth retrying.
	// -32700 parse, -32600 invalid request, -32601 method, -32602 params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") {
		return apperrors.CatValidation
	}

	if strings.Contains(s, "429") || strings.Contains(s, "too many requests") ||
		strings.Contains(s, "rate limit") || strings.Contains(s, "quota") ||
		strings.Contains(s, "plan limit") {
		return apperrors.CatRateLimited
	}

	if strings.Contains(s, "503") || strings.Contains(s, "502") ||
		strings.Contains(s, "unavailable") || strings.Contains(s, "bad gateway") ||
		strings.Contains(s, "maintenance") {
		return apperrors.CatServerUnavailable
	}

	if strings.Contains(s, "timeout") || strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") || strings.Contains(s, "eof") ||
		strings.Contains(s, "no such host") {
		return apperrors.CatTransientNetwork
	}

	return apperrors.CatTransientNetwork
}
