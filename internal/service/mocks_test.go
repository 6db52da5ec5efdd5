package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"mythweaver/api/internal/generation"
	"mythweaver/api/internal/models"
	"mythweaver/api/internal/notify"
)

var pngPayload = base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 7})

func success() generation.Artifact {
	return generation.Artifact{Base64: pngPayload, Seed: 1, FinishReason: generation.FinishSuccess}
}

func filtered() generation.Artifact {
	return generation.Artifact{Seed: 2, FinishReason: generation.FinishContentFiltered}
}

// journal records the order of side effects across the fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type scriptedGenerator struct {
	batches    []func(samples int) (*generation.Attempt, error)
	fallback   func(samples int) (*generation.Attempt, error)
	samples    []int
	presets    []string
	credential bool
}

func newScriptedGenerator(batches ...func(samples int) (*generation.Attempt, error)) *scriptedGenerator {
	return &scriptedGenerator{batches: batches, credential: true}
}

func (g *scriptedGenerator) HasCredential() bool { return g.credential }

func (g *scriptedGenerator) Generate(_ context.Context, _ models.ImageRequest, samples int, preset string) (*generation.Attempt, error) {
	call := len(g.samples)
	g.samples = append(g.samples, samples)
	g.presets = append(g.presets, preset)
	if call < len(g.batches) {
		return g.batches[call](samples)
	}
	if g.fallback != nil {
		return g.fallback(samples)
	}
	return nil, errors.New("unscripted call")
}

func returns(artifacts ...generation.Artifact) func(int) (*generation.Attempt, error) {
	return func(int) (*generation.Attempt, error) {
		return &generation.Attempt{Artifacts: artifacts}, nil
	}
}

func allSuccess(samples int) (*generation.Attempt, error) {
	artifacts := make([]generation.Artifact, samples)
	for i := range artifacts {
		artifacts[i] = success()
	}
	return &generation.Attempt{Artifacts: artifacts}, nil
}

func allFiltered(samples int) (*generation.Attempt, error) {
	artifacts := make([]generation.Artifact, samples)
	for i := range artifacts {
		artifacts[i] = filtered()
	}
	return &generation.Attempt{Artifacts: artifacts}, nil
}

type memoryStore struct {
	journal *journal
	blobs   map[string][]byte
	err     error
}

func newMemoryStore(j *journal) *memoryStore {
	return &memoryStore{journal: j, blobs: make(map[string][]byte)}
}

func (m *memoryStore) Put(_ context.Context, id string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if _, ok := m.blobs[id]; ok {
		return "", fmt.Errorf("duplicate id %s", id)
	}
	m.blobs[id] = data
	uri := "https://cdn.test/images/" + id + ".png"
	m.journal.add("store " + uri)
	return uri, nil
}

type memoryRecorder struct {
	journal *journal
	nextID  int64
	records []models.GeneratedImage
	err     error
}

func (m *memoryRecorder) Create(_ context.Context, image models.GeneratedImage) (models.GeneratedImage, error) {
	if m.err != nil {
		return models.GeneratedImage{}, m.err
	}
	m.nextID++
	image.ID = m.nextID
	m.records = append(m.records, image)
	m.journal.add(fmt.Sprintf("record %d", image.ID))
	return image, nil
}

type sentEvent struct {
	userID  int64
	kind    notify.EventKind
	payload any
}

type recordingNotifier struct {
	journal *journal
	events  []sentEvent
}

func (r *recordingNotifier) Notify(_ context.Context, userID int64, kind notify.EventKind, payload any) {
	r.events = append(r.events, sentEvent{userID: userID, kind: kind, payload: payload})
	if image, ok := payload.(models.GeneratedImage); ok {
		r.journal.add(fmt.Sprintf("notify %s %d", kind, image.ID))
		return
	}
	r.journal.add("notify " + string(kind))
}

func (r *recordingNotifier) kinds() []notify.EventKind {
	out := make([]notify.EventKind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.kind)
	}
	return out
}

func (r *recordingNotifier) count(kind notify.EventKind) int {
	n := 0
	for _, e := range r.events {
		if e.kind == kind {
			n++
		}
	}
	return n
}
