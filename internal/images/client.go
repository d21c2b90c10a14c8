package images

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rainfeed/backend/pkg/logger"
)

// Client generates abstract cover art through a Runware-compatible image
// inference endpoint. All failures are soft: articles keep their seeded
// gradient when no image comes back.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewClient(endpoint, apiKey, model string, timeout time.Duration) *Client {
	if model == "" {
		model = "runware:101@1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether the client has credentials to call the API.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type inferenceTask struct {
	TaskType       string `json:"taskType"`
	TaskUUID       string `json:"taskUUID"`
	PositivePrompt string `json:"positivePrompt"`
	Model          string `json:"model"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	NumberResults  int    `json:"numberResults"`
	OutputFormat   string `json:"outputFormat"`
	OutputType     string `json:"outputType"`
}

type inferenceResponse struct {
	Data []struct {
		TaskType string `json:"taskType"`
		ImageURL string `json:"imageURL"`
	} `json:"data"`
}

// Generate returns the URL of a rendered cover image for the seed.
func (c *Client) Generate(ctx context.Context, seed int64) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("image generation not configured")
	}

	prompt := GeneratePrompt(seed)

	payload, err := json.Marshal([]inferenceTask{{
		TaskType:       "imageInference",
		TaskUUID:       uuid.NewString(),
		PositivePrompt: prompt,
		Model:          c.model,
		Width:          512,
		Height:         512,
		NumberResults:  1,
		OutputFormat:   "WEBP",
		OutputType:     "URL",
	}})
	if err != nil {
		return "", fmt.Errorf("failed to marshal image request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build image request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call image API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("image API returned status %d: %s", resp.StatusCode, body)
	}

	var result inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode image response: %w", err)
	}

	for _, task := range result.Data {
		if task.TaskType == "imageInference" && task.ImageURL != "" {
			logger.Debug("Cover image generated",
				zap.Int64("seed", seed),
				zap.String("image_url", task.ImageURL),
			)
			return task.ImageURL, nil
		}
	}
	return "", fmt.Errorf("image API returned no image")
}
