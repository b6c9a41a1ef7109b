package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/brd-breakdown/constants"
	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
	"github.com/joseph-ayodele/brd-breakdown/internal/repository"
)

var day = time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)

func sampleEpics() []entity.Epic {
	return []entity.Epic{
		{
			EpicName:        "Single sign-on",
			EpicDescription: "Users log in once.",
			UserStories: []entity.UserStory{
				{
					StoryName:          "SAML login",
					Description:        "As a user I want SAML login",
					Label:              "Backend",
					Status:             "To Do",
					AcceptanceCriteria: []string{"redirects to IdP", "creates session"},
					NFRs:               []string{},
					DefinitionOfDone:   []string{"merged"},
					DefinitionOfReady:  []string{"IdP metadata available"},
				},
				{StoryName: "Logout", Label: "Frontend", Status: "Ready"},
			},
		},
		{EpicName: "Reporting", EpicDescription: "Monthly reports.", UserStories: []entity.UserStory{}},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML, " xlsx ": FormatXLSX} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, common.CodeUnknownFormat, appErr.Code)
}

func TestRenderJSONIsTheEpicArray(t *testing.T) {
	art, err := Render(sampleEpics(), FormatJSON, day)
	require.NoError(t, err)
	assert.Equal(t, "epics-and-stories-2026-03-09.json", art.Filename)
	assert.Equal(t, "application/json", art.ContentType)
	assert.Contains(t, string(art.Body), "\n  {")

	var back []entity.Epic
	require.NoError(t, json.Unmarshal(art.Body, &back))
	assert.Equal(t, sampleEpics(), back)
}

func TestRenderNilEpicsIsEmptyArray(t *testing.T) {
	art, err := Render(nil, FormatJSON, day)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(art.Body))
}

func TestRenderYAML(t *testing.T) {
	art, err := Render(sampleEpics(), FormatYAML, day)
	require.NoError(t, err)
	assert.Equal(t, "epics-and-stories-2026-03-09.yaml", art.Filename)
	assert.Contains(t, string(art.Body), "epic_name: Single sign-on")

	var back []entity.Epic
	require.NoError(t, yaml.Unmarshal(art.Body, &back))
	require.Len(t, back, 2)
	assert.Equal(t, []string{"redirects to IdP", "creates session"}, back[0].UserStories[0].AcceptanceCriteria)
}

func TestRenderXLSXOneRowPerStory(t *testing.T) {
	art, err := Render(sampleEpics(), FormatXLSX, day)
	require.NoError(t, err)
	assert.Equal(t, "epics-and-stories-2026-03-09.xlsx", art.Filename)

	f, err := excelize.OpenReader(bytes.NewReader(art.Body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(storySheet)
	require.NoError(t, err)
	// header + two stories + the story-less epic
	require.Len(t, rows, 4)
	assert.Equal(t, storyHeaders, rows[0])
	assert.Equal(t, "SAML login", rows[1][2])
	assert.Equal(t, "- redirects to IdP\n- creates session", rows[1][6])
	assert.Equal(t, "Logout", rows[2][2])
	assert.Equal(t, "Reporting", rows[3][0])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
	assert.Equal(t, "é…", truncate("éèê", 2))
}

type exportFixture struct {
	svc  *Service
	gens repository.GenerationRepository
	doc  *entity.Document
}

func setup(t *testing.T) exportFixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := repository.Open(ctx, repository.Config{DSN: repository.InMemoryDSN(uuid.NewString())}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	require.NoError(t, repository.Migrate(ctx, db, logger))

	docs := repository.NewDocumentRepository(db, logger)
	gens := repository.NewGenerationRepository(db, logger)
	doc, err := docs.Create(ctx, "brief.txt", "content", time.Now())
	require.NoError(t, err)

	svc := NewService(gens, logger)
	svc.now = func() time.Time { return day }
	return exportFixture{svc: svc, gens: gens, doc: doc}
}

func TestExportGenerationCompleted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	g, err := f.gens.Create(ctx, f.doc.ID)
	require.NoError(t, err)
	_, err = f.gens.FinishSuccess(ctx, g.ID, sampleEpics())
	require.NoError(t, err)

	art, err := f.svc.ExportGeneration(ctx, g.ID, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "epics-and-stories-2026-03-09.yaml", art.Filename)
	assert.Contains(t, string(art.Body), "Reporting")
}

func TestExportGenerationRejectsNonCompleted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	processing, err := f.gens.Create(ctx, f.doc.ID)
	require.NoError(t, err)
	failed, err := f.gens.Create(ctx, f.doc.ID)
	require.NoError(t, err)
	_, err = f.gens.FinishFailure(ctx, failed.ID, entity.FailurePayload{Error: "x", Code: constants.FailureInternal})
	require.NoError(t, err)

	for _, id := range []int{processing.ID, failed.ID} {
		_, err := f.svc.ExportGeneration(ctx, id, FormatJSON)
		require.Error(t, err)
		assert.True(t, errors.Is(err, common.ErrConflict))
		var appErr *common.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, common.CodeNotCompleted, appErr.Code)
	}
}

func TestExportGenerationNotFound(t *testing.T) {
	f := setup(t)
	_, err := f.svc.ExportGeneration(context.Background(), 999, FormatJSON)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}
