package interceptor

import (
	"context"

	"github.com/ecstasoy/addrecho/pkg/protocol"
)

type Invoker func(ctx context.Context, ex *protocol.Exchange) ([]byte, error)

type Interceptor func(ctx context.Context, ex *protocol.Exchange, invoker Invoker) ([]byte, error)

type Chain struct {
	interceptors []Interceptor
}

func NewChain(interceptor ...Interceptor) *Chain {
	return &Chain{interceptors: interceptor}
}

// Intercept runs the interceptors in the order they were added, then invoker.
func (ic *Chain) Intercept(ctx context.Context, ex *protocol.Exchange, invoker Invoker) ([]byte, error) {
	if len(ic.interceptors) == 0 {
		return invoker(ctx, ex)
	}

	return ic.buildChain(invoker)(ctx, ex)
}

func (ic *Chain) Len() int {
	return len(ic.interceptors)
}

func (ic *Chain) buildChain(invoker Invoker) Invoker {
	for i := len(ic.interceptors) - 1; i >= 0; i-- {
		next := invoker
		interceptor := ic.interceptors[i]

		invoker = func(ctx context.Context, ex *protocol.Exchange) ([]byte, error) {
			return interceptor(ctx, ex, next)
		}
	}

	return invoker
}
