package music

import (
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultUserAgent = "lyricsync/1.0"

// RetryPolicy 请求重试策略
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

// DefaultRetryPolicy 默认重试策略
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, Backoff: 500 * time.Millisecond}

// DoWithRetry 发送请求，网络错误或 5xx 时线性退避重试
// 返回的响应状态码可能不是 200，由调用方判断
func DoWithRetry(client *http.Client, req *http.Request, policy RetryPolicy) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			logger.Debug().
				Str("url", req.URL.Redacted()).
				Int("attempt", attempt).
				Int("max_retries", policy.MaxRetries).
				Msg("Retrying request")
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(time.Duration(attempt) * policy.Backoff):
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			if req.Context().Err() != nil {
				return nil, err
			}
			continue
		}
		if resp.StatusCode < http.StatusInternalServerError {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", policy.MaxRetries+1, lastErr)
}

// CheckStatus 把非 200 状态码转换为错误
func CheckStatus(provider string, resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return NotFound(provider, "status 404")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Upstream(provider, fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
}
