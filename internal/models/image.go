package models

import "time"

const DefaultStylePreset = "fantasy-art"

// Linking ties a generated image to the campaign object it was made for.
type Linking struct {
	SessionID     *int64 `json:"sessionId,omitempty"`
	ConjurationID *int64 `json:"conjurationId,omitempty"`
	CharacterID   *int64 `json:"characterId,omitempty"`
}

type ImageRequest struct {
	UserID         int64   `json:"userId"`
	Prompt         string  `json:"prompt"`
	Count          int     `json:"count"`
	NegativePrompt string  `json:"negativePrompt,omitempty"`
	StylePreset    string  `json:"stylePreset,omitempty"`
	Linking        Linking `json:"linking"`
}

// Preset returns the requested style preset or the default one.
func (r ImageRequest) Preset() string {
	if r.StylePreset != "" {
		return r.StylePreset
	}
	return DefaultStylePreset
}

type GeneratedImage struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"userId"`
	URI            string    `json:"uri"`
	Prompt         string    `json:"prompt"`
	NegativePrompt string    `json:"negativePrompt"`
	StylePreset    string    `json:"stylePreset"`
	Linking        Linking   `json:"linking"`
	CreatedAt      time.Time `json:"createdAt"`
}
