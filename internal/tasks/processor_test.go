package tasks

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mythweaver/api/internal/generation"
	"mythweaver/api/internal/models"
	"mythweaver/api/internal/notify"
	"mythweaver/api/internal/queue"
	"mythweaver/api/internal/service"
)

type fakeGenerator struct {
	requests []models.ImageRequest
	uris     []string
	err      error
}

func (f *fakeGenerator) Generate(_ context.Context, req models.ImageRequest) ([]string, error) {
	f.requests = append(f.requests, req)
	return f.uris, f.err
}

func generateMessage(payload string) redis.XMessage {
	return redis.XMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			queue.FieldType:    queue.TypeGenerate,
			queue.FieldJobID:   "job-1",
			queue.FieldPayload: payload,
		},
	}
}

func TestProcessorRunsGenerateTask(t *testing.T) {
	gen := &fakeGenerator{uris: []string{"https://cdn/a.png"}}
	p := NewProcessor(gen, zerolog.Nop())

	err := p.Handle(context.Background(), generateMessage(`{"userId":5,"prompt":"a dragon","count":1,"stylePreset":"anime"}`))
	require.NoError(t, err)

	require.Len(t, gen.requests, 1)
	assert.Equal(t, int64(5), gen.requests[0].UserID)
	assert.Equal(t, "a dragon", gen.requests[0].Prompt)
	assert.Equal(t, "anime", gen.requests[0].StylePreset)
}

func TestProcessorAcksTerminalOutcomes(t *testing.T) {
	cases := map[string]error{
		"aborted":   service.ErrGenerationAborted,
		"no key":    service.ErrMissingCredential,
		"storage":   errors.New("bucket missing"),
		"exhausted": nil,
	}
	for name, outcome := range cases {
		t.Run(name, func(t *testing.T) {
			gen := &fakeGenerator{uris: []string{}, err: outcome}
			p := NewProcessor(gen, zerolog.Nop())

			err := p.Handle(context.Background(), generateMessage(`{"userId":1,"prompt":"x","count":3}`))
			assert.NoError(t, err)
			assert.Len(t, gen.requests, 1)
		})
	}
}

func TestProcessorDropsMalformedTasks(t *testing.T) {
	gen := &fakeGenerator{}
	p := NewProcessor(gen, zerolog.Nop())

	assert.NoError(t, p.Handle(context.Background(), generateMessage(`{not json`)))
	assert.NoError(t, p.Handle(context.Background(), redis.XMessage{
		ID:     "2-0",
		Values: map[string]interface{}{queue.FieldType: "thumbnail"},
	}))
	assert.Empty(t, gen.requests)
}

// cancelOnSecondBatch stands in for the generation client. It cancels the
// worker context while the second batch is in flight, the way SIGTERM would.
type cancelOnSecondBatch struct {
	cancel  context.CancelFunc
	calls   int
	ctxLive []bool
}

func (g *cancelOnSecondBatch) HasCredential() bool { return true }

func (g *cancelOnSecondBatch) Generate(ctx context.Context, _ models.ImageRequest, samples int, _ string) (*generation.Attempt, error) {
	g.calls++
	if g.calls == 2 {
		g.cancel()
	}
	g.ctxLive = append(g.ctxLive, ctx.Err() == nil)
	if g.calls == 1 {
		return &generation.Attempt{Artifacts: []generation.Artifact{
			{Base64: pngBase64, FinishReason: generation.FinishSuccess},
			{FinishReason: generation.FinishContentFiltered},
		}}, nil
	}
	artifacts := make([]generation.Artifact, samples)
	for i := range artifacts {
		artifacts[i] = generation.Artifact{Base64: pngBase64, FinishReason: generation.FinishSuccess}
	}
	return &generation.Attempt{Artifacts: artifacts}, nil
}

var pngBase64 = base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 1})

type countingStore struct{ n int }

func (s *countingStore) Put(_ context.Context, id string, _ []byte) (string, error) {
	s.n++
	return "https://cdn.test/images/" + id + ".png", nil
}

type countingRecorder struct{ records []models.GeneratedImage }

func (r *countingRecorder) Create(_ context.Context, image models.GeneratedImage) (models.GeneratedImage, error) {
	image.ID = int64(len(r.records) + 1)
	r.records = append(r.records, image)
	return image, nil
}

type kindNotifier struct{ kinds []notify.EventKind }

func (n *kindNotifier) Notify(_ context.Context, _ int64, kind notify.EventKind, _ any) {
	n.kinds = append(n.kinds, kind)
}

func TestProcessorFinishesJobDuringShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &cancelOnSecondBatch{cancel: cancel}
	recorder := &countingRecorder{}
	notifier := &kindNotifier{}
	images := service.NewImageService(gen, &countingStore{}, recorder, notifier, nil, service.DefaultTryBudget, zerolog.Nop())
	p := NewProcessor(images, zerolog.Nop())

	msg := generateMessage(`{"userId":1,"prompt":"a dragon","count":2}`)
	require.NoError(t, p.Handle(ctx, msg))

	assert.Equal(t, []bool{true, true}, gen.ctxLive)
	assert.Len(t, recorder.records, 2)
	assert.Equal(t, []notify.EventKind{
		notify.ImageCreated, notify.ImageCreated, notify.ImageGenerationDone,
	}, notifier.kinds)
}
