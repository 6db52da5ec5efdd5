package tasks

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"mythweaver/api/internal/models"
	"mythweaver/api/internal/queue"
	"mythweaver/api/internal/service"
)

type ImageGenerator interface {
	Generate(ctx context.Context, req models.ImageRequest) ([]string, error)
}

type Processor struct {
	images ImageGenerator
	logger zerolog.Logger
}

type TaskPayload struct {
	Type    string `json:"type"`
	JobID   string `json:"jobId"`
	Payload string `json:"payload"`
}

func NewProcessor(images ImageGenerator, logger zerolog.Logger) *Processor {
	return &Processor{
		images: images,
		logger: logger,
	}
}

// Handle runs one stream entry to completion and always reports success so
// the entry is acked. A started job is never handed to another worker: the
// rerun would not know which images were already recorded and announced.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	var payload TaskPayload
	if err := decodePayload(msg.Values, &payload); err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed task")
		return nil
	}

	switch payload.Type {
	case queue.TypeGenerate:
		return p.handleGenerate(ctx, payload)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func decodePayload(values map[string]interface{}, out *TaskPayload) error {
	bytes, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, out)
}

func (p *Processor) handleGenerate(ctx context.Context, payload TaskPayload) error {
	log := p.logger.With().Str("job_id", payload.JobID).Logger()

	var req models.ImageRequest
	if err := json.Unmarshal([]byte(payload.Payload), &req); err != nil {
		log.Warn().Err(err).Msg("dropping generate task with bad request")
		return nil
	}

	// shutdown waits for the job instead of cutting it short
	uris, err := p.images.Generate(context.WithoutCancel(ctx), req)
	switch {
	case err == nil && len(uris) < req.Count:
		log.Info().Int("created", len(uris)).Int("count", req.Count).Msg("generate task exhausted try budget")
	case err == nil:
		log.Info().Int("created", len(uris)).Msg("generate task done")
	case errors.Is(err, service.ErrGenerationAborted):
		log.Warn().Err(err).Int64("user_id", req.UserID).Msg("generate task aborted")
	case errors.Is(err, service.ErrMissingCredential):
		log.Error().Err(err).Msg("generation credential missing")
	default:
		log.Error().Err(err).Int64("user_id", req.UserID).Msg("generate task failed")
	}
	return nil
}
