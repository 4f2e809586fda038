package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
)

// ModerationResult reports whether the input was flagged and under which
// categories. The gateway only transports the verdict; acting on it is the
// caller's concern.
type ModerationResult struct {
	Flagged    bool
	Categories []string
}

type moderationRequest struct {
	Input string `json:"input"`
}

type moderationResponse struct {
	Results []struct {
		Flagged    bool            `json:"flagged"`
		Categories map[string]bool `json:"categories"`
	} `json:"results"`
}

// Moderate checks the input against the moderation endpoint.
func (c *Client) Moderate(ctx context.Context, input string) (ModerationResult, error) {
	var result ModerationResult

	if err := c.limiter.Wait(ctx); err != nil {
		return result, fmt.Errorf("rate limiter: %w", err)
	}

	jsonData, err := json.Marshal(moderationRequest{Input: input})
	if err != nil {
		return result, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/moderations", bytes.NewBuffer(jsonData))
	if err != nil {
		return result, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return result, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
			return result, fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return result, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	var modResp moderationResponse
	if err := json.Unmarshal(body, &modResp); err != nil {
		return result, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(modResp.Results) == 0 {
		return result, fmt.Errorf("empty response from API")
	}

	result.Flagged = modResp.Results[0].Flagged
	for category, hit := range modResp.Results[0].Categories {
		if hit {
			result.Categories = append(result.Categories, category)
		}
	}
	sort.Strings(result.Categories)
	return result, nil
}
