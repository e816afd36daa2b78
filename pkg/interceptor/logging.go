package interceptor

import (
	"context"
	"time"

	"github.com/ecstasoy/addrecho/pkg/logging"
	"github.com/ecstasoy/addrecho/pkg/protocol"
)

func Logging(logger logging.Logger) Interceptor {
	logger = logging.OrDiscard(logger)

	return func(ctx context.Context, ex *protocol.Exchange, invoker Invoker) ([]byte, error) {
		start := time.Now()

		resp, err := invoker(ctx, ex)

		duration := time.Since(start)

		if err != nil {
			logger.Errorf("exchange [%s] failed in %v: %v", ex, duration, err)
		} else {
			logger.Infof("exchange [%s] completed in %v, %d bytes", ex, duration, len(resp))
		}

		return resp, err
	}
}
