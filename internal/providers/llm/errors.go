package llm

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"

	"github.com/sandevgo/replybot/pkg/retry"
)

// Classify maps a Chat error onto the retry taxonomy: throttling, server
// errors, timeouts and network failures are transient; auth and malformed
// requests are fatal.
func Classify(err error) retry.Kind {
	if err == nil {
		return retry.KindSuccess
	}

	if errors.Is(err, context.Canceled) {
		return retry.KindFatal
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrEmptyCompletion) {
		return retry.KindTransient
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == 0 {
			return retry.KindTransient
		}
		return classifyStatus(reqErr.HTTPStatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return retry.KindTransient
	}

	return retry.KindFatal
}

func classifyStatus(code int) retry.Kind {
	switch {
	case code == http.StatusTooManyRequests,
		code == http.StatusRequestTimeout,
		code == http.StatusConflict,
		code >= 500:
		return retry.KindTransient
	default:
		return retry.KindFatal
	}
}
