package vpn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/yllada/vpnht/common"
)

const maxIPBodySize = 1024

// IPProber looks up the public IP address. Concurrent probes share one
// request.
type IPProber struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
	group    singleflight.Group
}

// NewIPProber creates a prober for endpoint.
func NewIPProber(client *http.Client, endpoint string, timeout time.Duration) *IPProber {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		endpoint = common.DefaultIPEndpoint
	}
	if timeout <= 0 {
		timeout = common.ProbeTimeout
	}
	return &IPProber{client: client, endpoint: endpoint, timeout: timeout}
}

// Probe fetches the current public IP.
func (p *IPProber) Probe(ctx context.Context) (string, error) {
	// The shared request outlives any single caller; each caller still
	// stops waiting when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan("probe", func() (interface{}, error) {
		return p.fetch(shared)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if res.Err != nil {
		return "", res.Err
	}

	return res.Val.(string), nil
}

func (p *IPProber) fetch(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to probe ip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIPBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read ip response: %w", err)
	}
	ip := strings.TrimSpace(string(body))
	if ip == "" {
		return "", fmt.Errorf("ip endpoint returned an empty body")
	}
	return ip, nil
}
