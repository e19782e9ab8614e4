package models

import (
	"errors"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionSingleChoice QuestionType = "multiple_to_single"
	QuestionMultiChoice  QuestionType = "multiple_to_multiple"
	QuestionInsertText   QuestionType = "insert_text"
	QuestionAudioChoice  QuestionType = "audio"
	QuestionProseSummary QuestionType = "prose_summary"
	QuestionTable        QuestionType = "table"
)

// InsertTextOptions are the fixed insertion points offered by insert_text questions
var InsertTextOptions = []string{"a", "b", "c", "d"}

func (t QuestionType) IsValid() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiChoice, QuestionInsertText,
		QuestionAudioChoice, QuestionProseSummary, QuestionTable:
		return true
	}
	return false
}

// IsTable reports whether answers are (row, column) cells instead of options
func (t QuestionType) IsTable() bool {
	return t == QuestionTable
}

// IsSingleSelection reports whether exactly one option is expected
func (t QuestionType) IsSingleSelection() bool {
	return t == QuestionSingleChoice || t == QuestionAudioChoice || t == QuestionInsertText
}

var ErrQuestionContainer = errors.New("question must belong to exactly one passage or audio")

type Question struct {
	ID               uint         `json:"id" gorm:"primaryKey"`
	SectionType      SectionType  `json:"section_type" gorm:"not null;size:20;index"`
	Type             QuestionType `json:"type" gorm:"not null;size:30;index"`
	Prompt           string       `json:"prompt" gorm:"type:text;not null"`
	ReadingPassageID *uint        `json:"reading_passage_id" gorm:"index"`
	ListeningAudioID *uint        `json:"listening_audio_id" gorm:"index"`
	ParagraphIndex   *int         `json:"paragraph_index"`

	// Type specific authoring data (summary statement, ...)
	Extras datatypes.JSON `json:"extras,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	Options        []Option        `json:"options,omitempty" gorm:"foreignKey:QuestionID"`
	Rows           []TableRow      `json:"rows,omitempty" gorm:"foreignKey:QuestionID"`
	Columns        []TableColumn   `json:"columns,omitempty" gorm:"foreignKey:QuestionID"`
	CorrectAnswers []CorrectAnswer `json:"-" gorm:"foreignKey:QuestionID"`
	Audio          *QuestionAudio  `json:"audio,omitempty" gorm:"foreignKey:QuestionID"`
}

// ContainerID returns the passage or audio the question belongs to
func (q *Question) ContainerID() uint {
	if q.ReadingPassageID != nil {
		return *q.ReadingPassageID
	}
	if q.ListeningAudioID != nil {
		return *q.ListeningAudioID
	}
	return 0
}

func (q *Question) BeforeSave(tx *gorm.DB) error {
	hasPassage := q.ReadingPassageID != nil
	hasAudio := q.ListeningAudioID != nil
	if hasPassage == hasAudio {
		return ErrQuestionContainer
	}
	if hasPassage && q.SectionType != SectionReading {
		return ErrQuestionContainer
	}
	if hasAudio && q.SectionType != SectionListening {
		return ErrQuestionContainer
	}
	return nil
}

type Option struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null;default:0"`
	OptionText string `json:"text" gorm:"type:text;not null"`
}

type TableRow struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null;default:0"`
	Label      string `json:"label" gorm:"not null;size:255"`
}

func (TableRow) TableName() string {
	return "table_question_rows"
}

type TableColumn struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;index"`
	Position   int    `json:"position" gorm:"not null;default:0"`
	Label      string `json:"label" gorm:"not null;size:255"`
}

func (TableColumn) TableName() string {
	return "table_question_columns"
}

type QuestionAudio struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;uniqueIndex"`
	AudioURL   string `json:"audio_url" gorm:"not null;size:500"`
}

// ===== ORDERING =====

// OrderOptions sorts options into the order letters and indices refer to:
// ascending position, then ascending id.
func OrderOptions(options []Option) []Option {
	sorted := append([]Option(nil), options...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func OrderRows(rows []TableRow) []TableRow {
	sorted := append([]TableRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

func OrderColumns(columns []TableColumn) []TableColumn {
	sorted := append([]TableColumn(nil), columns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// ===== ANSWER KEYS =====

// AnswerKey is the canonical identity of a selection: an option id, or a
// (row id, column id) cell for table questions.
type AnswerKey struct {
	OptionID uint `json:"optionId,omitempty"`
	RowID    uint `json:"rowId,omitempty"`
	ColumnID uint `json:"colId,omitempty"`
}

func OptionKey(optionID uint) AnswerKey {
	return AnswerKey{OptionID: optionID}
}

func CellKey(rowID, columnID uint) AnswerKey {
	return AnswerKey{RowID: rowID, ColumnID: columnID}
}

func (k AnswerKey) IsCell() bool {
	return k.RowID != 0 && k.ColumnID != 0
}

func (k AnswerKey) IsZero() bool {
	return k == AnswerKey{}
}

var ErrAmbiguousSelection = errors.New("selection must reference either an option or a table cell")

type CorrectAnswer struct {
	ID            uint  `json:"id" gorm:"primaryKey"`
	QuestionID    uint  `json:"question_id" gorm:"not null;index"`
	OptionID      *uint `json:"option_id" gorm:"index"`
	TableRowID    *uint `json:"table_row_id"`
	TableColumnID *uint `json:"table_column_id"`
}

func (c *CorrectAnswer) BeforeSave(tx *gorm.DB) error {
	return checkSelectionColumns(c.OptionID, c.TableRowID, c.TableColumnID)
}

// Key returns the canonical key for the question type, or a zero key when the
// row does not carry a selection of that kind.
func (c CorrectAnswer) Key(qType QuestionType) AnswerKey {
	return selectionKey(qType, c.OptionID, c.TableRowID, c.TableColumnID)
}

type UserAnswer struct {
	ID            uint  `json:"id" gorm:"primaryKey"`
	UserID        uint  `json:"user_id" gorm:"not null;index:idx_user_answers_user_question"`
	QuestionID    uint  `json:"question_id" gorm:"not null;index:idx_user_answers_user_question"`
	OptionID      *uint `json:"option_id"`
	TableRowID    *uint `json:"table_row_id"`
	TableColumnID *uint `json:"table_column_id"`

	CreatedAt time.Time `json:"created_at"`

	// Relations
	User     User     `json:"-" gorm:"foreignKey:UserID"`
	Question Question `json:"-" gorm:"foreignKey:QuestionID"`
}

func (a *UserAnswer) BeforeSave(tx *gorm.DB) error {
	return checkSelectionColumns(a.OptionID, a.TableRowID, a.TableColumnID)
}

func (a UserAnswer) Key(qType QuestionType) AnswerKey {
	return selectionKey(qType, a.OptionID, a.TableRowID, a.TableColumnID)
}

// NewUserAnswer builds the stored row for a resolved key
func NewUserAnswer(userID, questionID uint, key AnswerKey) UserAnswer {
	answer := UserAnswer{UserID: userID, QuestionID: questionID}
	if key.IsCell() {
		row, col := key.RowID, key.ColumnID
		answer.TableRowID = &row
		answer.TableColumnID = &col
	} else {
		option := key.OptionID
		answer.OptionID = &option
	}
	return answer
}

func checkSelectionColumns(optionID, rowID, columnID *uint) error {
	hasOption := optionID != nil
	hasCell := rowID != nil && columnID != nil
	hasPartialCell := (rowID != nil) != (columnID != nil)
	if hasPartialCell || hasOption == hasCell {
		return ErrAmbiguousSelection
	}
	return nil
}

func selectionKey(qType QuestionType, optionID, rowID, columnID *uint) AnswerKey {
	if qType.IsTable() {
		if rowID == nil || columnID == nil {
			return AnswerKey{}
		}
		return CellKey(*rowID, *columnID)
	}
	if optionID == nil {
		return AnswerKey{}
	}
	return OptionKey(*optionID)
}
