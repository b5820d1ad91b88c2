//go:build !windows

package vpn

import (
	"context"
	"fmt"
)

type noServiceQuerier struct {
	name string
}

func newServiceQuerier(name string) ServiceQuerier {
	return &noServiceQuerier{name: name}
}

func (q *noServiceQuerier) State(ctx context.Context) (string, error) {
	return "", fmt.Errorf("%w: service %s requires windows", ErrUnsupportedPlatform, q.name)
}
