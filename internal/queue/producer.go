package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mythweaver/api/internal/ids"
	"mythweaver/api/internal/models"
)

// TypeGenerate marks a stream entry carrying an image request.
const TypeGenerate = "generate"

// Stream entry fields.
const (
	FieldType    = "type"
	FieldJobID   = "jobId"
	FieldPayload = "payload"
)

type Producer struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewProducer(client *redis.Client, stream string, maxLen int64) *Producer {
	return &Producer{client: client, stream: stream, maxLen: maxLen}
}

// Enqueue appends the request to the generation stream and returns its job id.
func (p *Producer) Enqueue(ctx context.Context, req models.ImageRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	jobID := ids.New()
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			FieldType:    TypeGenerate,
			FieldJobID:   jobID,
			FieldPayload: string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return jobID, nil
}
