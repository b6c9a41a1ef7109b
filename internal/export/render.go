package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/brd-breakdown/internal/common"
	"github.com/joseph-ayodele/brd-breakdown/internal/entity"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts json, yaml (or yml) and xlsx, case-insensitively. Empty means json.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "xlsx":
		return FormatXLSX, nil
	}
	return "", common.ValidationErrorf(common.CodeUnknownFormat, "unknown export format %q (want json, yaml or xlsx)", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatYAML:
		return "application/yaml"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Artifact is a rendered download.
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Filename is epics-and-stories-<YYYY-MM-DD>.<ext> for the given day.
func Filename(f Format, day time.Time) string {
	return fmt.Sprintf("epics-and-stories-%s.%s", day.UTC().Format("2006-01-02"), f)
}

// Render encodes epics in the requested format. JSON and YAML carry the epic
// array as is; XLSX lays out one row per user story.
func Render(epics []entity.Epic, f Format, day time.Time) (Artifact, error) {
	if epics == nil {
		epics = []entity.Epic{}
	}
	var (
		body []byte
		err  error
	)
	switch f {
	case FormatJSON:
		body, err = json.MarshalIndent(epics, "", "  ")
	case FormatYAML:
		body, err = renderYAML(epics)
	case FormatXLSX:
		body, err = renderXLSX(epics)
	default:
		_, err = ParseFormat(string(f))
	}
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Filename: Filename(f, day), ContentType: f.ContentType(), Body: body}, nil
}

func renderYAML(epics []entity.Epic) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(epics); err != nil {
		return nil, fmt.Errorf("yaml encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("yaml encode: %w", err)
	}
	return buf.Bytes(), nil
}

const storySheet = "User Stories"

var storyHeaders = []string{
	"Epic",
	"Epic Description",
	"Story",
	"Description",
	"Label",
	"Status",
	"Acceptance Criteria",
	"NFRs",
	"Definition of Done",
	"Definition of Ready",
}

func renderXLSX(epics []entity.Epic) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", storySheet); err != nil {
		return nil, err
	}
	idx, err := f.GetSheetIndex(storySheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)

	for i, h := range storyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(storySheet, cell, h)
	}

	row := 2
	for _, e := range epics {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(storySheet, cell, v)
		}
		// An epic without stories still gets a row so it is not lost.
		if len(e.UserStories) == 0 {
			write(1, e.EpicName)
			write(2, truncate(e.EpicDescription, 500))
			row++
			continue
		}
		for _, s := range e.UserStories {
			write(1, e.EpicName)
			write(2, truncate(e.EpicDescription, 500))
			write(3, s.StoryName)
			write(4, s.Description)
			write(5, s.Label)
			write(6, s.Status)
			write(7, bullets(s.AcceptanceCriteria))
			write(8, bullets(s.NFRs))
			write(9, bullets(s.DefinitionOfDone))
			write(10, bullets(s.DefinitionOfReady))
			row++
		}
	}

	_ = f.SetColWidth(storySheet, "A", "A", 28) // epic
	_ = f.SetColWidth(storySheet, "B", "B", 48)
	_ = f.SetColWidth(storySheet, "C", "C", 32) // story
	_ = f.SetColWidth(storySheet, "D", "D", 60)
	_ = f.SetColWidth(storySheet, "E", "F", 14) // label, status
	_ = f.SetColWidth(storySheet, "G", "J", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func bullets(items []string) string {
	if len(items) == 0 {
		return ""
	}
	return "- " + strings.Join(items, "\n- ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
