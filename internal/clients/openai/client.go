package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/pkg/retry"
	"github.com/gamescout/gamescout-backend/internal/utils"
)

// Client wraps the embedding and generation endpoints. Both produce raw
// results; interpretation (facet semantics, suggestion parsing) lives with
// the callers.
type Client interface {
	// Embed turns each input into a fixed-length vector. Every returned
	// vector has the same dimensionality for the configured model; a
	// dimensionality change upstream is a breaking migration.
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	// GenerateText runs a plain text completion.
	GenerateText(ctx context.Context, system, user string) (string, error)
	// GenerateTextWithImage runs a completion with one image attached.
	GenerateTextWithImage(ctx context.Context, system, user, imageURL string) (string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
	policy     retry.Policy
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := utils.GetEnv("OPENAI_API_KEY", "", nil)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log)
	model := utils.GetEnv("OPENAI_MODEL", "gpt-4o-mini", log)
	embedModel := utils.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log)
	timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 120, log)

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = utils.GetEnvAsInt("OPENAI_MAX_RETRIES", 4, log) + 1

	return &client{
		log:        log.With("client", "OpenAIClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		policy:     policy,
	}, nil
}

// ---- transport ----

func (c *client) post(ctx context.Context, path string, body any, out any) error {
	var raw []byte
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		var opErr error
		raw, opErr = c.postOnce(ctx, path, body)
		if opErr != nil && apperrors.IsRetryable(opErr) {
			c.log.Warn("OpenAI request retrying", "path", path, "error", opErr.Error())
		}
		return opErr
	})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if uErr := json.Unmarshal(raw, out); uErr != nil {
		return fmt.Errorf("%w: openai decode: %v", apperrors.ErrMalformedResponse, uErr)
	}
	return nil
}

func (c *client) postOnce(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransient, err)
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransient, readErr)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout:
		return nil, fmt.Errorf("%w: openai http %d", apperrors.ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: openai http %d", apperrors.ErrTransient, resp.StatusCode)
	default:
		return nil, fmt.Errorf("openai http %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}
}

// ---- embeddings ----

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	req := embeddingsRequest{Model: c.embedModel, Input: inputs}
	var resp embeddingsResponse
	if err := c.post(ctx, "/v1/embeddings", req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = vec
		}
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("%w: missing embedding for index %d", apperrors.ErrMalformedResponse, i)
		}
		if len(out[i]) != len(out[0]) {
			return nil, fmt.Errorf("%w: inconsistent embedding dimensions %d vs %d", apperrors.ErrMalformedResponse, len(out[i]), len(out[0]))
		}
	}
	return out, nil
}

// ---- chat completions ----

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	return c.chat(ctx, system, []contentPart{{Type: "text", Text: user}})
}

func (c *client) GenerateTextWithImage(ctx context.Context, system, user, imageURL string) (string, error) {
	parts := []contentPart{{Type: "text", Text: user}}
	if strings.TrimSpace(imageURL) != "" {
		img := &struct {
			URL string `json:"url"`
		}{URL: imageURL}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: img})
	}
	return c.chat(ctx, system, parts)
}

func (c *client) chat(ctx context.Context, system string, userParts []contentPart) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: userParts},
		},
		Temperature: 0.3,
	}

	var resp chatResponse
	if err := c.post(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in completion", apperrors.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
