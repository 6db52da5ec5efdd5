package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mythweaver/api/internal/generation"
	"mythweaver/api/internal/metrics"
	"mythweaver/api/internal/models"
	"mythweaver/api/internal/notify"
	"mythweaver/api/internal/storage"
)

// DefaultTryBudget caps the attempt units spent on one request. Each batch
// costs the originally requested count, whatever it asks for.
const DefaultTryBudget = 30

const filteredMessage = "We couldn't generate an image that passed the content filter. Try rewording your prompt."

var (
	ErrMissingCredential = generation.ErrMissingCredential
	// ErrGenerationAborted means the generation service failed outright and
	// the request was given up; the user has already been told.
	ErrGenerationAborted = errors.New("image generation aborted")
)

type ImageGenerator interface {
	Generate(ctx context.Context, req models.ImageRequest, samples int, preset string) (*generation.Attempt, error)
	HasCredential() bool
}

type ArtifactRecorder interface {
	Create(ctx context.Context, image models.GeneratedImage) (models.GeneratedImage, error)
}

type ImageService struct {
	generator ImageGenerator
	store     storage.BlobStore
	images    ArtifactRecorder
	notifier  notify.Notifier
	metrics   *metrics.Collector
	tryBudget int
	log       zerolog.Logger
}

func NewImageService(
	generator ImageGenerator,
	store storage.BlobStore,
	images ArtifactRecorder,
	notifier notify.Notifier,
	collector *metrics.Collector,
	tryBudget int,
	log zerolog.Logger,
) *ImageService {
	if tryBudget <= 0 {
		tryBudget = DefaultTryBudget
	}
	return &ImageService{
		generator: generator,
		store:     store,
		images:    images,
		notifier:  notifier,
		metrics:   collector,
		tryBudget: tryBudget,
		log:       log.With().Str("component", "image_service").Logger(),
	}
}

type generationRun struct {
	uris  []string
	tries int
	calls int
}

// Generate produces up to req.Count images and returns their URIs in the
// order they were created. A nil slice with ErrGenerationAborted means the
// service failed; a short or empty slice with a nil error means the try
// budget ran out before enough images passed the filter.
func (s *ImageService) Generate(ctx context.Context, req models.ImageRequest) ([]string, error) {
	run, err := s.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return run.uris, nil
}

func (s *ImageService) run(ctx context.Context, req models.ImageRequest) (generationRun, error) {
	if s.generator == nil || !s.generator.HasCredential() {
		return generationRun{}, ErrMissingCredential
	}

	run := generationRun{uris: make([]string, 0, max(req.Count, 0))}
	started := time.Now()

	if req.Count <= 0 {
		s.metrics.RequestFinished(metrics.OutcomeNoop, started)
		return run, nil
	}

	log := s.log.With().Int64("user_id", req.UserID).Int("count", req.Count).Logger()
	preset := req.Preset()

	for len(run.uris) < req.Count && run.tries < s.tryBudget {
		remaining := req.Count - len(run.uris)
		run.tries += req.Count
		run.calls++

		s.metrics.BatchRequested()
		attempt, err := s.generator.Generate(ctx, req, remaining, preset)
		if err != nil {
			log.Warn().Err(err).Int("tries", run.tries).Msg("generation aborted")
			s.metrics.RequestFinished(metrics.OutcomeAborted, started)
			return generationRun{}, fmt.Errorf("%w: %w", ErrGenerationAborted, err)
		}

		prompt := req.Prompt
		if attempt.UpdatedPrompt != "" {
			prompt = attempt.UpdatedPrompt
			s.notifier.Notify(ctx, req.UserID, notify.PromptRephrased, attempt.UpdatedPrompt)
		}

		for _, artifact := range attempt.Artifacts {
			s.metrics.ArtifactReturned(string(artifact.FinishReason))
			if len(run.uris) >= req.Count {
				break
			}
			if !artifact.Accepted() {
				continue
			}

			image, err := s.persist(ctx, req, prompt, artifact)
			if err != nil {
				log.Error().Err(err).Msg("persist generated image failed")
				s.notifier.Notify(ctx, req.UserID, notify.ImageError, "Your image was generated but could not be saved. Please try again.")
				s.metrics.RequestFinished(metrics.OutcomeFailed, started)
				return generationRun{}, err
			}

			run.uris = append(run.uris, image.URI)
			s.metrics.ImageCreated()
			s.notifier.Notify(ctx, req.UserID, notify.ImageCreated, image)
		}

		log.Debug().
			Int("batch", run.calls).
			Int("requested", remaining).
			Int("valid", len(run.uris)).
			Int("tries", run.tries).
			Msg("generation batch processed")
	}

	if len(run.uris) < req.Count {
		log.Info().Int("valid", len(run.uris)).Int("tries", run.tries).Msg("try budget exhausted")
		s.notifier.Notify(ctx, req.UserID, notify.ImageFiltered, filteredMessage)
		s.metrics.RequestFinished(metrics.OutcomeFiltered, started)
		return run, nil
	}

	log.Info().Int("tries", run.tries).Msg("image generation done")
	s.notifier.Notify(ctx, req.UserID, notify.ImageGenerationDone, notify.GenerationDone{URIs: run.uris})
	s.metrics.RequestFinished(metrics.OutcomeDone, started)
	return run, nil
}

// persist stores the bytes and records the image. The record is written
// before anyone is told about it so the event carries the database id.
func (s *ImageService) persist(ctx context.Context, req models.ImageRequest, prompt string, artifact generation.Artifact) (models.GeneratedImage, error) {
	data, err := artifact.Bytes()
	if err != nil {
		return models.GeneratedImage{}, err
	}

	id := uuid.NewString()
	uri, err := s.store.Put(ctx, id, data)
	if err != nil {
		return models.GeneratedImage{}, fmt.Errorf("store image %s: %w", id, err)
	}

	image, err := s.images.Create(ctx, models.GeneratedImage{
		UserID:         req.UserID,
		URI:            uri,
		Prompt:         prompt,
		NegativePrompt: req.NegativePrompt,
		StylePreset:    req.Preset(),
		Linking:        req.Linking,
	})
	if err != nil {
		return models.GeneratedImage{}, fmt.Errorf("record image %s: %w", id, err)
	}
	return image, nil
}
