//go:build !linux || !amd64

package trace

import (
	"context"
	"fmt"

	"github.com/clickpkg/go-clicksandbox/interpose"
)

func Run(ctx context.Context, opts Options) (int, error) {
	return interpose.ExitUnresolved, fmt.Errorf("%w: %v", interpose.ErrUnresolved, ErrUnsupported)
}

func MaybeWorkerInit() bool {
	return false
}
