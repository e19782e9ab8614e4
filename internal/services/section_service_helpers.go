package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/storage"
	"github.com/hezretaly/toefl/internal/validator"
)

// pendingUpload is a request file bound for a storage folder
type pendingUpload struct {
	field  string
	folder string
	file   *storage.File
}

// ===== QUESTION AUTHORING =====

// createQuestion stores the question with its choices, then the correct
// answers resolved against the ids the choices received.
func (s *sectionService) createQuestion(ctx context.Context, tx *gorm.DB, sectionType models.SectionType, containerID uint, req *QuestionRequest) (*models.Question, error) {
	question, err := BuildQuestion(sectionType, containerID, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Question().Create(ctx, tx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	correct, skipped := CorrectAnswersFor(question, req)
	for _, index := range skipped {
		s.logger.Warn("Skipping out of range correct answer",
			"question_id", question.ID,
			"question_type", question.Type,
			"index", index)
	}
	if err := s.repo.Question().CreateCorrectAnswers(ctx, tx, correct); err != nil {
		return nil, fmt.Errorf("failed to create correct answers: %w", err)
	}
	return question, nil
}

// BuildQuestion turns an authoring payload into an unsaved question with its
// options or rows and columns at their insertion positions.
func BuildQuestion(sectionType models.SectionType, containerID uint, req *QuestionRequest) (*models.Question, error) {
	question := &models.Question{
		SectionType: sectionType,
		Type:        req.Type,
		Prompt:      req.Prompt,
	}

	switch sectionType {
	case models.SectionReading:
		question.ReadingPassageID = ptr(containerID)
		question.ParagraphIndex = req.ParagraphIndex
	case models.SectionListening:
		question.ListeningAudioID = ptr(containerID)
	default:
		return nil, NewValidationError("section_type", "questions belong to reading or listening sections", sectionType)
	}

	if req.Type == models.QuestionProseSummary && strings.TrimSpace(req.SummaryStatement) != "" {
		extras, err := json.Marshal(map[string]string{"summary_statement": req.SummaryStatement})
		if err != nil {
			return nil, fmt.Errorf("failed to encode question extras: %w", err)
		}
		question.Extras = datatypes.JSON(extras)
	}

	switch {
	case req.Type.IsTable():
		for i, label := range req.Rows {
			question.Rows = append(question.Rows, models.TableRow{Position: i, Label: label})
		}
		for i, label := range req.Columns {
			question.Columns = append(question.Columns, models.TableColumn{Position: i, Label: label})
		}
	case req.Type == models.QuestionInsertText:
		for i, letter := range models.InsertTextOptions {
			question.Options = append(question.Options, models.Option{Position: i, OptionText: letter})
		}
	default:
		for i, text := range req.Options {
			question.Options = append(question.Options, models.Option{Position: i, OptionText: text})
		}
	}

	return question, nil
}

// CorrectAnswersFor resolves the authoring indices of a saved question into
// correct answer rows. Indices outside the choices are returned as skipped.
func CorrectAnswersFor(question *models.Question, req *QuestionRequest) ([]models.CorrectAnswer, []string) {
	var (
		correct []models.CorrectAnswer
		skipped []string
	)

	if question.Type.IsTable() {
		rows := models.OrderRows(question.Rows)
		columns := models.OrderColumns(question.Columns)
		seen := make(map[models.AnswerKey]bool)
		for _, selection := range req.CorrectTableSelections {
			key, err := ResolveTableCell(TableCellIndex{Row: selection.RowIndex, Col: selection.ColIndex}, rows, columns)
			if err != nil {
				skipped = append(skipped, fmt.Sprintf("row %d, col %d", selection.RowIndex, selection.ColIndex))
				continue
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			correct = append(correct, models.CorrectAnswer{
				QuestionID:    question.ID,
				TableRowID:    ptr(key.RowID),
				TableColumnID: ptr(key.ColumnID),
			})
		}
		return correct, skipped
	}

	var indices []int
	switch question.Type {
	case models.QuestionSingleChoice, models.QuestionAudioChoice:
		if req.CorrectOptionIndex != nil {
			indices = []int{*req.CorrectOptionIndex}
		}
	case models.QuestionInsertText:
		point := strings.ToLower(strings.TrimSpace(req.CorrectInsertionPoint))
		if point == "" {
			break
		}
		index := -1
		for i, letter := range models.InsertTextOptions {
			if letter == point {
				index = i
			}
		}
		if index < 0 {
			skipped = append(skipped, point)
			break
		}
		indices = []int{index}
	default:
		indices = req.CorrectAnswerIndices
	}

	options := models.OrderOptions(question.Options)
	seen := make(map[uint]bool)
	for _, index := range indices {
		if index < 0 || index >= len(options) {
			skipped = append(skipped, fmt.Sprintf("%d", index))
			continue
		}
		optionID := options[index].ID
		if seen[optionID] {
			continue
		}
		seen[optionID] = true
		correct = append(correct, models.CorrectAnswer{QuestionID: question.ID, OptionID: ptr(optionID)})
	}
	return correct, skipped
}

// ===== UPLOADS =====

func audioFileField(clientID string) string   { return fmt.Sprintf("audioItem_%s_audioFile", clientID) }
func imageFileField(clientID string) string   { return fmt.Sprintf("audioItem_%s_imageFile", clientID) }
func snippetFileField(clientID string) string { return fmt.Sprintf("question_%s_snippetFile", clientID) }
func taskAudioField(taskNumber int) string    { return fmt.Sprintf("audio_task_%d", taskNumber) }

// listeningUploads matches the multipart files to the audio items and audio
// questions that need them.
func listeningUploads(req *CreateListeningSectionRequest, files UploadSet) ([]pendingUpload, ValidationErrors) {
	var (
		uploads []pendingUpload
		errs    ValidationErrors
	)

	for i, item := range req.AudioItems {
		field := audioFileField(item.ClientID)
		if file := files[field]; file != nil {
			uploads = append(uploads, pendingUpload{field: field, folder: storage.FolderListeningAudio, file: file})
		} else {
			errs = append(errs, validator.ValidationError{
				Field:   fmt.Sprintf("audioItems[%d]", i),
				Message: fmt.Sprintf("missing audio file (expected key: %s)", field),
				Rule:    "required_file",
			})
		}

		field = imageFileField(item.ClientID)
		if file := files[field]; file != nil {
			uploads = append(uploads, pendingUpload{field: field, folder: storage.FolderListeningImages, file: file})
		}

		for j, question := range item.Questions {
			if question.Type != models.QuestionAudioChoice {
				continue
			}
			field = snippetFileField(question.ClientID)
			if file := files[field]; question.ClientID != "" && file != nil {
				uploads = append(uploads, pendingUpload{field: field, folder: storage.FolderQuestionSnippets, file: file})
				continue
			}
			errs = append(errs, validator.ValidationError{
				Field:   fmt.Sprintf("audioItems[%d].questions[%d]", i, j),
				Message: fmt.Sprintf("audio questions need a snippet file (expected key: %s)", field),
				Rule:    "required_file",
			})
		}
	}
	return uploads, errs
}

// taskUploads requires the prompt audio of the listed task numbers
func taskUploads(files UploadSet, folder string, taskNumbers ...int) ([]pendingUpload, ValidationErrors) {
	var (
		uploads []pendingUpload
		errs    ValidationErrors
	)
	for _, number := range taskNumbers {
		field := taskAudioField(number)
		file := files[field]
		if file == nil {
			errs = append(errs, validator.ValidationError{
				Field:   field,
				Message: fmt.Sprintf("missing audio file for task %d", number),
				Rule:    "required_file",
			})
			continue
		}
		uploads = append(uploads, pendingUpload{field: field, folder: folder, file: file})
	}
	return uploads, errs
}

// storeUploads saves every file and returns field -> storage key. Nothing is
// left behind when one of them fails.
func (s *sectionService) storeUploads(ctx context.Context, uploads []pendingUpload) (map[string]string, error) {
	keys := make(map[string]string, len(uploads))
	for _, upload := range uploads {
		key, err := s.storage.Save(ctx, upload.folder, upload.file)
		if err != nil {
			removeFiles(ctx, s.logger, s.storage, mapValues(keys))
			return nil, fmt.Errorf("failed to store %s: %w", upload.field, err)
		}
		keys[upload.field] = key
	}
	return keys, nil
}

func sortSpeakingTasks(tasks []validator.SpeakingTaskRequest) []validator.SpeakingTaskRequest {
	sorted := append([]validator.SpeakingTaskRequest(nil), tasks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TaskNumber < sorted[j].TaskNumber })
	return sorted
}

func sortWritingTasks(tasks []validator.WritingTaskRequest) []validator.WritingTaskRequest {
	sorted := append([]validator.WritingTaskRequest(nil), tasks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TaskNumber < sorted[j].TaskNumber })
	return sorted
}

func mapValues(m map[string]string) []string {
	values := make([]string, 0, len(m))
	for _, v := range m {
		values = append(values, v)
	}
	return values
}
