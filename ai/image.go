package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxImageRetries = 3

type imageRequest struct {
	Group   string `json:"group"`
	Type    string `json:"type"`
	Size    string `json:"size"`
	Details string `json:"details"`
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// GenerateImage renders the prompt on the image endpoint. Transient
// server errors are retried up to maxImageRetries times with the wait
// doubling each attempt; after that the call fails for good and the
// caller decides what to do with the round.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	url := fmt.Sprintf("%s/api/GenerateImage?code=%s", c.imageEndpoint, c.imageAuth)

	payload, err := json.Marshal(imageRequest{
		Group:   "imageguess",
		Type:    "raw",
		Size:    "1536x1024",
		Details: prompt,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= maxImageRetries; attempt++ {
		if attempt > 0 {
			wait := c.imageRetryDelay << (attempt - 1)
			c.log.Warn().Err(lastErr).Int("attempt", attempt).Dur("wait", wait).
				Msg("image generation failed, retrying")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		imageURL, retryable, err := c.requestImage(ctx, url, payload)
		if err == nil {
			return imageURL, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", fmt.Errorf("image generation failed after %d retries: %w", maxImageRetries, lastErr)
}

func (c *Client) requestImage(ctx context.Context, url string, payload []byte) (imageURL string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport-level failures count as transient.
		return "", true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var parsed imageResponse
		if err := json.Unmarshal(body, &parsed); err != nil {
			return "", false, fmt.Errorf("image endpoint: bad response body: %w", err)
		}
		if parsed.ImageURL == "" {
			return "", false, fmt.Errorf("image endpoint: response missing imageUrl")
		}
		return fmt.Sprintf("%s/%s?code=%s", c.imageEndpoint, parsed.ImageURL, c.imageAuth), false, nil

	case resp.StatusCode >= http.StatusInternalServerError:
		return "", true, fmt.Errorf("image generation failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))

	default:
		return "", false, fmt.Errorf("image generation failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}
