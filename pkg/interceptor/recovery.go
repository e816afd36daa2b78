package interceptor

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/ecstasoy/addrecho/pkg/protocol"
)

func Recovery() Interceptor {
	return func(ctx context.Context, ex *protocol.Exchange, invoker Invoker) (resp []byte, err error) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				err = fmt.Errorf("panic recovered: %v\nstack:\n%s", r, stack)
				resp = nil
			}
		}()

		return invoker(ctx, ex)
	}
}
