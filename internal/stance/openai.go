package stance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"convoyset/internal/config"
	"convoyset/internal/model"
)

// maxPromptBytes guards against submitting a suspiciously big payload; a
// developer prompt plus one tweet should never come near this.
const maxPromptBytes = 5000

// OpenAIDetector classifies stance through the OpenAI Responses API.
type OpenAIDetector struct {
	model       string
	apiKey      string
	baseURL     string
	tweetPrompt string
	userPrompt  string
	httpClient  *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	baseBackoff time.Duration
}

// NewOpenAIDetector builds a detector from config plus the two developer
// prompts (loaded from the prompt folder by the caller).
func NewOpenAIDetector(cfg config.StanceConfig, tweetPrompt, userPrompt string) (*OpenAIDetector, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	return &OpenAIDetector{
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		baseURL:     "https://api.openai.com/v1",
		tweetPrompt: tweetPrompt,
		userPrompt:  userPrompt,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(1), 2),
		maxAttempts: 5,
		baseBackoff: 500 * time.Millisecond,
	}, nil
}

func (d *OpenAIDetector) EvaluateTweet(ctx context.Context, t model.Tweet) (Label, error) {
	user := FormatTweetPrompt(t)
	if len(d.tweetPrompt)+len(user) > maxPromptBytes+280 {
		return "", fmt.Errorf("tweet %s: payload too large", t.ID)
	}
	out, err := d.call(ctx, d.tweetPrompt, user)
	if err != nil {
		return "", err
	}
	return NormalizeLabel(out)
}

func (d *OpenAIDetector) EvaluateUser(ctx context.Context, tweets []model.Tweet) (Label, error) {
	if len(tweets) == 0 {
		return "", errors.New("evaluating a user with no tweets")
	}
	author := tweets[0].AuthorID
	for _, t := range tweets {
		if t.AuthorID != author {
			return "", errors.New("evaluating tweets of multiple users at once")
		}
	}
	user := FormatUserPrompt(tweets)
	if len(d.userPrompt)+len(user) > maxPromptBytes+len(tweets)*280 {
		return "", fmt.Errorf("user %s: payload too large", author)
	}
	out, err := d.call(ctx, d.userPrompt, user)
	if err != nil {
		return "", err
	}
	return NormalizeLabel(out)
}

type responsesRequest struct {
	Model string             `json:"model"`
	Input []responsesMessage `json:"input"`
}

type responsesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (d *OpenAIDetector) call(ctx context.Context, developer, user string) (string, error) {
	body, err := json.Marshal(responsesRequest{
		Model: d.model,
		Input: []responsesMessage{
			{Role: "developer", Content: developer},
			{Role: "user", Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/responses", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	if err := d.limiter.Wait(ctx); err != nil {
		return "", err
	}
	resp, err := d.doWithRetry(ctx, req, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("openai status %d", resp.StatusCode)
	}
	return parseResponsesOutput(resp)
}

func (d *OpenAIDetector) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	backoff := d.baseBackoff
	var lastErr error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		r := req.Clone(ctx)
		r.Body = nopCloser(body)
		resp, err := d.httpClient.Do(r)
		if err == nil {
			if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
				_ = resp.Body.Close()
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				backoff *= 2
				lastErr = fmt.Errorf("openai status %d", resp.StatusCode)
				continue
			}
			return resp, nil
		}
		lastErr = err
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("openai call failed after %d attempts: %w", d.maxAttempts, lastErr)
}

func nopCloser(body []byte) *bytesReadCloser {
	return &bytesReadCloser{Reader: bytes.NewReader(body)}
}

type bytesReadCloser struct{ *bytes.Reader }

func (b *bytesReadCloser) Close() error { return nil }

// parseResponsesOutput extracts the text from a Responses API payload: the
// flat output_text if present, otherwise the first output message block.
func parseResponsesOutput(resp *http.Response) (string, error) {
	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", err
	}
	if out, ok := raw["output_text"].(string); ok && out != "" {
		return out, nil
	}
	if output, ok := raw["output"].([]any); ok {
		for _, item := range output {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			content, ok := m["content"].([]any)
			if !ok {
				continue
			}
			for _, blk := range content {
				if bm, ok := blk.(map[string]any); ok {
					if text, ok := bm["text"].(string); ok && text != "" {
						return text, nil
					}
				}
			}
		}
	}
	return "", errors.New("empty classifier response")
}
