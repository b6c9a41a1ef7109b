package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/async"
	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
	"github.com/joseph-ayodele/brd-breakdown/internal/extract"
	"github.com/joseph-ayodele/brd-breakdown/internal/llm"
	"github.com/joseph-ayodele/brd-breakdown/internal/llm/openai"
	"github.com/joseph-ayodele/brd-breakdown/internal/pipeline"
	"github.com/joseph-ayodele/brd-breakdown/internal/repository"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fullResult has 7 epics of 3 stories each.
func fullResult() entity.GenerationResult {
	var r entity.GenerationResult
	for i := 0; i < 7; i++ {
		e := entity.Epic{EpicName: "Epic", EpicDescription: "d"}
		for j := 0; j < 3; j++ {
			e.UserStories = append(e.UserStories, entity.UserStory{
				StoryName: "s", Description: "As a user...", Label: "API", Status: "To Do",
				AcceptanceCriteria: []string{"a"}, NFRs: []string{"n"},
				DefinitionOfDone: []string{"d"}, DefinitionOfReady: []string{"r"},
			})
		}
		r.Epics = append(r.Epics, e)
	}
	return r
}

// gatedGenerator returns result, but only after release is closed when one is set.
type gatedGenerator struct {
	result  entity.GenerationResult
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func (g *gatedGenerator) Generate(ctx context.Context, _ string) (entity.GenerationResult, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return entity.GenerationResult{}, ctx.Err()
		}
	}
	return g.result, nil
}

type harness struct {
	svc   *Service
	docs  repository.DocumentRepository
	gens  repository.GenerationRepository
	queue *async.ProcessorQueue
}

func newHarness(t *testing.T, gen llm.StoryGenerator, opts ...async.Option) *harness {
	t.Helper()
	ctx := context.Background()
	logger := quietLogger()
	db, err := repository.Open(ctx, repository.Config{DSN: repository.InMemoryDSN(uuid.NewString())}, logger)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(ctx, db, logger))

	docs := repository.NewDocumentRepository(db, logger)
	gens := repository.NewGenerationRepository(db, logger)
	q := async.NewProcessorQueue(pipeline.NewProcessor(logger, docs, gens, gen), logger, opts...)
	t.Cleanup(func() {
		q.Shutdown(context.Background())
		repository.Close(db, logger)
	})

	svc := NewService(extract.NewExtractor(extract.Config{}, logger), docs, gens, q, 0, logger)
	return &harness{svc: svc, docs: docs, gens: gens, queue: q}
}

func tempUpload(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "upload-"+uuid.NewString())
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func (h *harness) waitTerminal(t *testing.T, id int) *entity.Generation {
	t.Helper()
	var g *entity.Generation
	require.Eventually(t, func() bool {
		var err error
		g, err = h.svc.GetGeneration(context.Background(), id)
		return err == nil && g.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return g
}

func (h *harness) documentCount(t *testing.T) int {
	t.Helper()
	n, err := h.docs.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestUploadHappyPath(t *testing.T) {
	gen := &gatedGenerator{result: fullResult(), release: make(chan struct{})}
	h := newHarness(t, gen)
	ctx := context.Background()

	path := tempUpload(t, "The portal must support SSO and audit logs.")
	res, err := h.svc.Upload(ctx, UploadRequest{Filename: "brief.txt", Path: path, Size: 42})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DocumentID)
	assert.Equal(t, 1, res.GenerationID)
	assert.Equal(t, UploadAcceptedMessage, res.Message)

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist), "temp file should be removed")

	// polling before completion is idempotent
	first, err := h.svc.GetGeneration(ctx, res.GenerationID)
	require.NoError(t, err)
	second, err := h.svc.GetGeneration(ctx, res.GenerationID)
	require.NoError(t, err)
	assert.Equal(t, constants.GenerationStatusProcessing, first.Status)
	assert.Equal(t, first, second)

	close(gen.release)
	done := h.waitTerminal(t, res.GenerationID)
	assert.Equal(t, constants.GenerationStatusCompleted, done.Status)
	assert.True(t, done.CreatedAt.Equal(first.CreatedAt))

	epics, err := done.DecodeEpics()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(epics), 7)
	for _, e := range epics {
		assert.GreaterOrEqual(t, len(e.UserStories), 3)
	}

	again, err := h.svc.GetGeneration(ctx, res.GenerationID)
	require.NoError(t, err)
	assert.Equal(t, done, again)

	doc, err := h.svc.GetDocument(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "brief.txt", doc.Filename)
	assert.Equal(t, "The portal must support SSO and audit logs.", doc.Content)
}

func TestUploadRejections(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		body     string
		size     int64
		code     string
	}{
		{name: "whitespace only", filename: "empty.txt", body: " \n\t ", code: common.CodeEmptyDocument},
		{name: "unsupported extension", filename: "notes.xyz", body: "hello", code: common.CodeUnsupportedFormat},
		{name: "too large", filename: "big.txt", body: "x", size: constants.MaxUploadBytesDefault + 1, code: common.CodeFileTooLarge},
		{name: "broken pdf", filename: "brd.pdf", body: "not a pdf", code: common.CodeExtractionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := &gatedGenerator{result: fullResult()}
			h := newHarness(t, gen)
			path := tempUpload(t, tc.body)

			_, err := h.svc.Upload(context.Background(), UploadRequest{Filename: tc.filename, Path: path, Size: tc.size})
			require.Error(t, err)

			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tc.code, appErr.Code)
			assert.ErrorIs(t, err, common.ErrValidation)

			assert.Zero(t, h.documentCount(t))
			_, statErr := os.Stat(path)
			assert.True(t, errors.Is(statErr, os.ErrNotExist), "temp file should be removed")
		})
	}
}

func TestUploadUnsupportedFormatIsDecidedByExtractor(t *testing.T) {
	h := newHarness(t, &gatedGenerator{result: fullResult()})
	path := tempUpload(t, "hello")

	_, err := h.svc.Upload(context.Background(), UploadRequest{Filename: "notes.xyz", Path: path, Size: 5})
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeUnsupportedFormat, appErr.Code)
	assert.Equal(t, "Unsupported file type", appErr.Message)
	assert.ErrorIs(t, err, extract.ErrUnsupportedFormat)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestUploadWithoutFile(t *testing.T) {
	h := newHarness(t, &gatedGenerator{})
	_, err := h.svc.Upload(context.Background(), UploadRequest{})

	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeNoFile, appErr.Code)
}

func TestUploadMissingCredentialFails(t *testing.T) {
	client := openai.NewClient(openai.Config{APIKey: ""}, quietLogger())
	h := newHarness(t, client)

	res, err := h.svc.Upload(context.Background(), UploadRequest{Filename: "brief.txt", Path: tempUpload(t, "some requirements")})
	require.NoError(t, err)

	g := h.waitTerminal(t, res.GenerationID)
	assert.Equal(t, constants.GenerationStatusFailed, g.Status)
	require.NotNil(t, g.CompletedAt)
	p, ok := g.Failure()
	require.True(t, ok)
	assert.Equal(t, constants.FailureMissingCredential, p.Code)
	assert.Contains(t, p.Error, "API key")
}

func TestUploadMalformedUpstreamFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"Sorry, I cannot produce epics for this."}}]}`)
	}))
	defer srv.Close()

	client := openai.NewClient(openai.Config{APIKey: "k", BaseURL: srv.URL}, quietLogger())
	h := newHarness(t, client)

	res, err := h.svc.Upload(context.Background(), UploadRequest{Filename: "brief.txt", Path: tempUpload(t, "some requirements")})
	require.NoError(t, err)

	g := h.waitTerminal(t, res.GenerationID)
	p, ok := g.Failure()
	require.True(t, ok)
	assert.Equal(t, constants.FailureMalformedResponse, p.Code)
	assert.Contains(t, p.Error, "JSON")
}

func TestConcurrentGenerationsForOneDocumentAreIndependent(t *testing.T) {
	gen := &gatedGenerator{result: fullResult(), release: make(chan struct{})}
	h := newHarness(t, gen, async.WithWorkers(1))
	ctx := context.Background()

	first, err := h.svc.Upload(ctx, UploadRequest{Filename: "brief.txt", Path: tempUpload(t, "requirements")})
	require.NoError(t, err)
	second, err := h.svc.Regenerate(ctx, first.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, first.DocumentID, second.DocumentID)
	assert.NotEqual(t, first.GenerationID, second.GenerationID)
	assert.Equal(t, RegenerateAcceptedMessage, second.Message)

	// the second generation is failed out of band while the first is still running
	_, err = h.gens.FinishFailure(ctx, second.GenerationID, entity.FailurePayload{Error: "x", Code: constants.FailureInternal})
	require.NoError(t, err)

	g1, err := h.svc.GetGeneration(ctx, first.GenerationID)
	require.NoError(t, err)
	assert.Equal(t, constants.GenerationStatusProcessing, g1.Status)

	close(gen.release)
	assert.Equal(t, constants.GenerationStatusCompleted, h.waitTerminal(t, first.GenerationID).Status)
	assert.Equal(t, constants.GenerationStatusFailed, h.waitTerminal(t, second.GenerationID).Status)

	list, err := h.svc.ListGenerations(ctx, first.DocumentID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.GenerationID, list[0].ID)
	assert.Equal(t, second.GenerationID, list[1].ID)
}

func TestRegenerateUnknownDocument(t *testing.T) {
	h := newHarness(t, &gatedGenerator{})
	_, err := h.svc.Regenerate(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetGenerationNotFound(t *testing.T) {
	h := newHarness(t, &gatedGenerator{})
	_, err := h.svc.GetGeneration(context.Background(), 99)
	assert.ErrorIs(t, err, common.ErrNotFound)

	list, err := h.svc.ListGenerations(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestQueueFullIsRecordedOnTheGeneration(t *testing.T) {
	gen := &gatedGenerator{result: fullResult(), release: make(chan struct{})}
	h := newHarness(t, gen, async.WithWorkers(1), async.WithQueueSize(1))
	defer close(gen.release)
	ctx := context.Background()

	first, err := h.svc.Upload(ctx, UploadRequest{Filename: "a.txt", Path: tempUpload(t, "a")})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		gen.mu.Lock()
		defer gen.mu.Unlock()
		return gen.calls == 1
	}, 5*time.Second, 5*time.Millisecond)

	_, err = h.svc.Regenerate(ctx, first.DocumentID) // fills the single slot
	require.NoError(t, err)
	third, err := h.svc.Regenerate(ctx, first.DocumentID)
	require.NoError(t, err)

	g, err := h.svc.GetGeneration(ctx, third.GenerationID)
	require.NoError(t, err)
	p, ok := g.Failure()
	require.True(t, ok)
	assert.Equal(t, constants.FailureQueueFull, p.Code)
}

func TestSweepStale(t *testing.T) {
	gen := &gatedGenerator{result: fullResult(), release: make(chan struct{})}
	h := newHarness(t, gen)
	defer close(gen.release)
	ctx := context.Background()

	n, err := h.svc.SweepStale(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)

	doc, err := h.docs.Create(ctx, "a.txt", "x", time.Now())
	require.NoError(t, err)
	orphan, err := h.gens.Create(ctx, doc.ID)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	n, err = h.svc.SweepStale(ctx, 10*time.Millisecond)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	g, err := h.svc.GetGeneration(ctx, orphan.ID)
	require.NoError(t, err)
	p, ok := g.Failure()
	require.True(t, ok)
	assert.Equal(t, constants.FailureInterrupted, p.Code)
}
