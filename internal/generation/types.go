package generation

import (
	"context"
	"encoding/base64"
	"fmt"
)

type FinishReason string

const (
	FinishSuccess         FinishReason = "SUCCESS"
	FinishContentFiltered FinishReason = "CONTENT_FILTERED"
	FinishError           FinishReason = "ERROR"
)

// Artifact is one candidate image returned by the generation service.
type Artifact struct {
	Base64       string       `json:"base64"`
	Seed         int64        `json:"seed"`
	FinishReason FinishReason `json:"finishReason"`
}

func (a Artifact) Accepted() bool {
	return a.FinishReason == FinishSuccess
}

// Bytes decodes the image payload.
func (a Artifact) Bytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(a.Base64)
	if err != nil {
		return nil, fmt.Errorf("decode artifact (seed %d): %w", a.Seed, err)
	}
	return data, nil
}

// Attempt is the result of one successful call to the service. UpdatedPrompt
// is set only when the prompt had to be rephrased to get past the filter.
type Attempt struct {
	Artifacts     []Artifact
	UpdatedPrompt string
}

// RephrasePolicy may rewrite a prompt the service refused. depth starts at 1
// for the first rewrite. Returning false gives up.
type RephrasePolicy interface {
	Rephrase(ctx context.Context, prompt string, depth int) (string, bool)
}

// NoRephrase never rewrites; a filtered prompt fails the attempt.
type NoRephrase struct{}

func (NoRephrase) Rephrase(context.Context, string, int) (string, bool) {
	return "", false
}

type textPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type textToImageBody struct {
	TextPrompts []textPrompt `json:"text_prompts"`
	CfgScale    float64      `json:"cfg_scale"`
	Height      int          `json:"height"`
	Width       int          `json:"width"`
	Steps       int          `json:"steps"`
	Samples     int          `json:"samples"`
	StylePreset string       `json:"style_preset,omitempty"`
}

type textToImageResponse struct {
	Artifacts []Artifact `json:"artifacts"`
}

type apiErrorBody struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// APIError is a non-2xx answer from the generation service.
type APIError struct {
	Status  int
	Name    string
	Message string
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("generation service status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("generation service status %d (%s): %s", e.Status, e.Name, e.Message)
}
