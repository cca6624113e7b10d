// Package iap verifies store receipts with Google Play and the App Store.
// Each verifier serves one platform and hands back the canonical
// transaction id for crediting.
package iap

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
	return &http.Client{Timeout: 15 * time.Second}
}

// rejected wraps a reason as a verification failure.
func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrExternalVerificationFailed, fmt.Sprintf(format, args...))
}

func do(ctx context.Context, client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req.WithContext(ctx))
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
