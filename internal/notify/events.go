package notify

import "context"

type EventKind string

const (
	PromptRephrased     EventKind = "prompt-rephrased"
	ImageCreated        EventKind = "image-created"
	ImageFiltered       EventKind = "image-filtered"
	ImageGenerationDone EventKind = "image-generation-done"
	ImageError          EventKind = "image-error"
)

// Notifier pushes an event to whatever connections userID currently has.
// Delivery is best effort: nothing is queued for disconnected users and
// failures are never reported to the caller.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind EventKind, payload any)
}

// Event is the frame written to a client socket.
type Event struct {
	Kind EventKind `json:"event"`
	Data any       `json:"data"`
}

type GenerationDone struct {
	URIs []string `json:"uris"`
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, int64, EventKind, any) {}
