package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mythweaver/api/internal/config"
	"mythweaver/api/internal/models"
	"mythweaver/api/internal/notify"
)

const (
	cfgScale    = 7
	imageHeight = 1024
	imageWidth  = 1024
	steps       = 30

	negativePromptPrefix = "nsfw, nudity, lowres, blurry, deformed, disfigured, extra limbs, watermark, text"

	contentFilterErrorName = "invalid_prompts"
	maxErrorBody           = 64 << 10
)

var (
	ErrMissingCredential = errors.New("generation api key not configured")
	ErrContentFiltered   = errors.New("prompt rejected by content filter")
)

type Client struct {
	httpClient *http.Client
	cfg        config.GenerationConfig
	limiter    *rate.Limiter
	policy     RephrasePolicy
	notifier   notify.Notifier
	log        zerolog.Logger
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithRephrasePolicy(policy RephrasePolicy) Option {
	return func(c *Client) { c.policy = policy }
}

func NewClient(cfg config.GenerationConfig, notifier notify.Notifier, log zerolog.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RateLimit), 1)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		limiter:    limiter,
		policy:     NoRephrase{},
		notifier:   notifier,
		log:        log.With().Str("component", "generation_client").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// HasCredential reports whether the client can authenticate.
func (c *Client) HasCredential() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Generate asks the service for samples images. Any failure has already been
// reported to the user as an image-error event when it is returned.
func (c *Client) Generate(ctx context.Context, req models.ImageRequest, samples int, preset string) (*Attempt, error) {
	prompt := req.Prompt
	for depth := 0; ; depth++ {
		attempt, err := c.post(ctx, prompt, req.NegativePrompt, samples, preset)
		if err == nil {
			if depth > 0 {
				attempt.UpdatedPrompt = prompt
			}
			return attempt, nil
		}

		if errors.Is(err, ErrContentFiltered) && depth < c.cfg.MaxRephraseDepth {
			if next, ok := c.policy.Rephrase(ctx, prompt, depth+1); ok && next != "" {
				c.log.Info().Int64("user_id", req.UserID).Int("depth", depth+1).Msg("prompt filtered, retrying with rephrased prompt")
				prompt = next
				continue
			}
		}

		c.log.Error().Err(err).Int64("user_id", req.UserID).Int("samples", samples).Msg("image generation failed")
		c.notifier.Notify(ctx, req.UserID, notify.ImageError, userMessage(err))
		return nil, err
	}
}

func (c *Client) post(ctx context.Context, prompt string, negativePrompt string, samples int, preset string) (*Attempt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(textToImageBody{
		TextPrompts: []textPrompt{
			{Text: prompt, Weight: 1},
			{Text: NegativePrompt(negativePrompt), Weight: -1},
		},
		CfgScale:    cfgScale,
		Height:      imageHeight,
		Width:       imageWidth,
		Steps:       steps,
		Samples:     samples,
		StylePreset: preset,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post text-to-image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp)
	}

	var decoded textToImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &Attempt{Artifacts: decoded.Artifacts}, nil
}

func (c *Client) endpoint() string {
	host := strings.TrimSuffix(c.cfg.APIHost, "/")
	return fmt.Sprintf("%s/v1/generation/%s/text-to-image", host, c.cfg.EngineID)
}

// NegativePrompt prefixes the caller's negative prompt with the phrases every
// request must exclude.
func NegativePrompt(userNegative string) string {
	userNegative = strings.TrimSpace(userNegative)
	if userNegative == "" {
		return negativePromptPrefix
	}
	return negativePromptPrefix + ", " + userNegative
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err != nil || (body.Name == "" && body.Message == "") {
		body.Message = strings.TrimSpace(string(raw))
	}

	apiErr := &APIError{Status: resp.StatusCode, Name: body.Name, Message: body.Message}
	if resp.StatusCode == http.StatusBadRequest && body.Name == contentFilterErrorName {
		return fmt.Errorf("%w: %w", ErrContentFiltered, apiErr)
	}
	return apiErr
}

func userMessage(err error) string {
	if errors.Is(err, ErrContentFiltered) {
		return "Your prompt was rejected by the content filter. Please try a different description."
	}
	return "Image generation failed. Please try again later."
}
