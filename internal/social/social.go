// Package social verifies third-party login credentials and maps them onto
// a domain.SocialIdentity.
package social

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"storyshelf/internal/domain"
)

const maxBody = 1 << 20

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrIdentityVerification, fmt.Sprintf(format, args...))
}

func get(ctx context.Context, client *http.Client, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, rejected("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, rejected("read response: %v", err)
	}
	return resp.StatusCode, body, nil
}
