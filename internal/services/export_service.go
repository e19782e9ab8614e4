package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/hezretaly/toefl/internal/auth"
	"github.com/hezretaly/toefl/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type exportService struct {
	reviews ReviewService
	logger  *slog.Logger
}

func NewExportService(reviews ReviewService, logger *slog.Logger) ExportService {
	return &exportService{
		reviews: reviews,
		logger:  logger,
	}
}

// resultColumn is one graded item of a section: a task or a question
type resultColumn struct {
	id     uint
	header string
}

// ExportSectionResults writes one row per student with the outcome of every
// task or question and the section total.
func (s *exportService) ExportSectionResults(ctx context.Context, identity auth.Identity, sectionType models.SectionType, sectionID uint) (*ExportFile, error) {
	detail, err := s.reviews.GetAdminSectionDetail(ctx, identity, sectionType, sectionID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Exporting section results",
		"section_type", sectionType,
		"section_id", sectionID,
		"students", len(detail.Submissions))

	columns := resultColumns(detail)

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	sheet := "Results"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []interface{}{"Student ID", "Student"}
	for _, column := range columns {
		header = append(header, column.header)
	}
	header = append(header, "Total")
	if sectionType.IsChoiceBased() {
		header = append(header, "Max Answered")
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve header range: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, bold); err != nil {
		return nil, fmt.Errorf("failed to style header: %w", err)
	}

	for i, submission := range detail.Submissions {
		row := studentResultRow(sectionType, submission, columns)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return &ExportFile{
		Filename:    fmt.Sprintf("%s_section_%d_results.xlsx", sectionType, sectionID),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

// resultColumns collects the graded items found in any submission, tasks by
// number and questions by id.
func resultColumns(detail *models.AdminSectionDetail) []resultColumn {
	seen := make(map[uint]resultColumn)
	order := make(map[uint]int)
	for _, submission := range detail.Submissions {
		for _, response := range submission.Responses {
			switch {
			case response.TaskID != nil:
				seen[*response.TaskID] = resultColumn{id: *response.TaskID, header: fmt.Sprintf("Task %d", derefInt(response.TaskNumber))}
				order[*response.TaskID] = derefInt(response.TaskNumber)
			case response.QuestionID != nil:
				seen[*response.QuestionID] = resultColumn{id: *response.QuestionID, header: fmt.Sprintf("Q%d", *response.QuestionID)}
				order[*response.QuestionID] = int(*response.QuestionID)
			}
		}
	}

	columns := make([]resultColumn, 0, len(seen))
	for _, column := range seen {
		columns = append(columns, column)
	}
	sort.Slice(columns, func(i, j int) bool { return order[columns[i].id] < order[columns[j].id] })
	return columns
}

func studentResultRow(sectionType models.SectionType, submission models.StudentSubmission, columns []resultColumn) []interface{} {
	row := []interface{}{submission.Student.ID, submission.Student.Name}

	if sectionType.IsFreeResponse() {
		scores := make(map[uint]*float64)
		for _, response := range submission.Responses {
			scores[derefUint(response.TaskID)] = response.Score
		}
		var total float64
		for _, column := range columns {
			score := scores[column.id]
			if score == nil {
				row = append(row, "")
				continue
			}
			total += *score
			row = append(row, *score)
		}
		return append(row, total)
	}

	// Every answer row of a question carries the same question outcome
	type outcome struct{ awarded, points int }
	outcomes := make(map[uint]outcome)
	for _, response := range submission.Responses {
		if response.QuestionID == nil {
			continue
		}
		outcomes[*response.QuestionID] = outcome{awarded: derefInt(response.Awarded), points: derefInt(response.Points)}
	}

	var total, max int
	for _, column := range columns {
		o, ok := outcomes[column.id]
		if !ok {
			row = append(row, "")
			continue
		}
		total += o.awarded
		max += o.points
		row = append(row, o.awarded)
	}
	return append(row, total, max)
}
