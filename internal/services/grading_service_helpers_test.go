package services

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"testing"

	"github.com/hezretaly/toefl/internal/models"
)

func TestDecodeChoicePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "letters", raw: `["a","C"]`, want: []string{"a", "c"}},
		{name: "numbers", raw: `[0, 2]`, want: []string{"0", "2"}},
		{name: "numeric strings", raw: `["1"]`, want: []string{"1"}},
		{name: "duplicates dropped", raw: `["b","B"," b "]`, want: []string{"b"}},
		{name: "empty list", raw: `[]`, want: []string{}},
		{name: "null", raw: `null`, wantErr: true},
		{name: "object", raw: `{"a":true}`, wantErr: true},
		{name: "nested", raw: `[["a"]]`, wantErr: true},
		{name: "boolean item", raw: `[true]`, wantErr: true},
		{name: "fractional number", raw: `[1.5]`, wantErr: true},
		{name: "exponent number", raw: `[1e0]`, wantErr: true},
		{name: "negative number kept for range check", raw: `[-1]`, want: []string{"-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeChoicePayload(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeChoicePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeChoicePayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveChoiceToken(t *testing.T) {
	tests := []struct {
		token   string
		count   int
		want    int
		wantErr error
	}{
		{token: "a", count: 4, want: 0},
		{token: "D", count: 4, want: 3},
		{token: "2", count: 4, want: 2},
		{token: "e", count: 4, wantErr: errTokenRange},
		{token: "4", count: 4, wantErr: errTokenRange},
		{token: "-1", count: 4, wantErr: errTokenRange},
		{token: "ab", count: 4, wantErr: errTokenFormat},
		{token: "", count: 4, wantErr: errTokenFormat},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ResolveChoiceToken(tt.token, tt.count)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveChoiceToken() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveChoiceToken() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveChoiceToken() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecodeTablePayload(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []TableCellIndex
		wantErr bool
	}{
		{
			name: "grid ignores false cells",
			raw:  `{"1":{"0":true,"1":false},"0":{"1":true}}`,
			want: []TableCellIndex{{Row: 0, Col: 1}, {Row: 1, Col: 0}},
		},
		{
			name: "pairs with duplicates",
			raw:  `[{"row":1,"col":1},{"row":0,"col":0},{"row":1,"col":1}]`,
			want: []TableCellIndex{{Row: 0, Col: 0}, {Row: 1, Col: 1}},
		},
		{name: "pair missing col", raw: `[{"row":1}]`, wantErr: true},
		{name: "grid with bad key", raw: `{"x":{"0":true}}`, wantErr: true},
		{name: "string", raw: `"a"`, wantErr: true},
		{name: "empty", raw: ``, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTablePayload(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeTablePayload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeTablePayload() = %v, want %v", got, tt.want)
			}
		})
	}
}

// choiceQuestion has options stored out of display order: ids 12, 10, 11 sit
// at positions 2, 0, 1 so letter "a" is option 10.
func choiceQuestion(qType models.QuestionType) *models.Question {
	passageID := uint(5)
	return &models.Question{
		ID:               7,
		SectionType:      models.SectionReading,
		Type:             qType,
		ReadingPassageID: &passageID,
		Options: []models.Option{
			{ID: 12, Position: 2, OptionText: "C"},
			{ID: 10, Position: 0, OptionText: "A"},
			{ID: 11, Position: 1, OptionText: "B"},
		},
	}
}

func tableQuestion() *models.Question {
	passageID := uint(5)
	return &models.Question{
		ID:               8,
		SectionType:      models.SectionReading,
		Type:             models.QuestionTable,
		ReadingPassageID: &passageID,
		Rows: []models.TableRow{
			{ID: 21, Position: 1, Label: "second"},
			{ID: 20, Position: 0, Label: "first"},
		},
		Columns: []models.TableColumn{
			{ID: 30, Position: 0, Label: "yes"},
			{ID: 31, Position: 1, Label: "no"},
		},
	}
}

func TestNormalizeAnswer(t *testing.T) {
	tests := []struct {
		name          string
		question      *models.Question
		raw           string
		want          []models.AnswerKey
		wantSelection bool
		wantInvalid   bool
	}{
		{
			name:     "letter follows position order",
			question: choiceQuestion(models.QuestionSingleChoice),
			raw:      `["a"]`,
			want:     []models.AnswerKey{models.OptionKey(10)},
		},
		{
			name:     "letter and index naming the same option collapse",
			question: choiceQuestion(models.QuestionMultiChoice),
			raw:      `["b", 1, "c"]`,
			want:     []models.AnswerKey{models.OptionKey(11), models.OptionKey(12)},
		},
		{
			name:          "index past the options",
			question:      choiceQuestion(models.QuestionMultiChoice),
			raw:           `[3]`,
			wantSelection: true,
		},
		{
			name:        "fractional index is malformed",
			question:    choiceQuestion(models.QuestionSingleChoice),
			raw:         `[1.5]`,
			wantInvalid: true,
		},
		{
			name:        "choice payload not a list",
			question:    choiceQuestion(models.QuestionSingleChoice),
			raw:         `"a"`,
			wantInvalid: true,
		},
		{
			name:     "table grid resolves ids",
			question: tableQuestion(),
			raw:      `{"1":{"0":true}}`,
			want:     []models.AnswerKey{models.CellKey(21, 30)},
		},
		{
			name:          "table cell out of range",
			question:      tableQuestion(),
			raw:           `[{"row":2,"col":0}]`,
			wantSelection: true,
		},
		{
			name:        "table payload as choice list",
			question:    tableQuestion(),
			raw:         `["a"]`,
			wantInvalid: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeAnswer(tt.question, json.RawMessage(tt.raw))
			switch {
			case tt.wantSelection:
				var selectionErr *SelectionError
				if !errors.As(err, &selectionErr) || !errors.Is(err, ErrInvalidSelection) {
					t.Fatalf("NormalizeAnswer() error = %v, want SelectionError", err)
				}
				if selectionErr.QuestionID != tt.question.ID {
					t.Errorf("SelectionError.QuestionID = %d, want %d", selectionErr.QuestionID, tt.question.ID)
				}
			case tt.wantInvalid:
				var validationErrs ValidationErrors
				if !errors.As(err, &validationErrs) {
					t.Fatalf("NormalizeAnswer() error = %v, want ValidationErrors", err)
				}
				if validationErrs[0].Field != "answers.5."+strconv.FormatUint(uint64(tt.question.ID), 10) {
					t.Errorf("field = %q", validationErrs[0].Field)
				}
			default:
				if err != nil {
					t.Fatalf("NormalizeAnswer() error = %v", err)
				}
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("NormalizeAnswer() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestPointsFor(t *testing.T) {
	tests := []struct {
		qType   models.QuestionType
		correct int
		want    int
	}{
		{models.QuestionSingleChoice, 1, 1},
		{models.QuestionMultiChoice, 3, 1},
		{models.QuestionProseSummary, 1, 1},
		{models.QuestionProseSummary, 3, 2},
		{models.QuestionTable, 2, 2},
		{models.QuestionTable, 0, 1},
	}
	for _, tt := range tests {
		if got := PointsFor(tt.qType, tt.correct); got != tt.want {
			t.Errorf("PointsFor(%s, %d) = %d, want %d", tt.qType, tt.correct, got, tt.want)
		}
	}
}

func TestScoreQuestionAndIsCorrect(t *testing.T) {
	a, b, c := models.OptionKey(1), models.OptionKey(2), models.OptionKey(3)
	tests := []struct {
		name        string
		qType       models.QuestionType
		correct     []models.AnswerKey
		user        []models.AnswerKey
		wantAwarded int
		wantPoints  int
		wantCorrect bool
	}{
		{"single right", models.QuestionSingleChoice, []models.AnswerKey{a}, []models.AnswerKey{a}, 1, 1, true},
		{"single wrong", models.QuestionSingleChoice, []models.AnswerKey{a}, []models.AnswerKey{b}, 0, 1, false},
		{"single with two picks", models.QuestionSingleChoice, []models.AnswerKey{a}, []models.AnswerKey{a, b}, 0, 1, false},
		{"multi exact set", models.QuestionMultiChoice, []models.AnswerKey{a, b}, []models.AnswerKey{b, a}, 1, 1, true},
		{"multi subset gets nothing", models.QuestionMultiChoice, []models.AnswerKey{a, b}, []models.AnswerKey{a}, 0, 1, false},
		{"prose summary double weight", models.QuestionProseSummary, []models.AnswerKey{a, b, c}, []models.AnswerKey{a, b, c}, 2, 2, true},
		{"no answer", models.QuestionMultiChoice, []models.AnswerKey{a}, nil, 0, 1, false},
		{"empty correct and empty answer", models.QuestionMultiChoice, nil, nil, 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			awarded, points := ScoreQuestion(tt.qType, tt.correct, tt.user)
			if awarded != tt.wantAwarded || points != tt.wantPoints {
				t.Errorf("ScoreQuestion() = (%d, %d), want (%d, %d)", awarded, points, tt.wantAwarded, tt.wantPoints)
			}
			if got := IsCorrect(tt.qType, tt.correct, tt.user); got != tt.wantCorrect {
				t.Errorf("IsCorrect() = %v, want %v", got, tt.wantCorrect)
			}
		})
	}
}

func TestScoreSection(t *testing.T) {
	single := choiceQuestion(models.QuestionSingleChoice)
	single.CorrectAnswers = []models.CorrectAnswer{{OptionID: ptr(uint(10))}}

	table := tableQuestion()
	table.CorrectAnswers = []models.CorrectAnswer{
		{TableRowID: ptr(uint(20)), TableColumnID: ptr(uint(30))},
		{TableRowID: ptr(uint(21)), TableColumnID: ptr(uint(31))},
	}

	answers := map[uint][]models.AnswerKey{
		single.ID: {models.OptionKey(10)},
		table.ID:  {models.CellKey(20, 30)},
	}

	outcome := ScoreSection([]*models.Question{single, table}, answers)
	if outcome.Score != 1 || outcome.MaxScore != 3 {
		t.Errorf("ScoreSection() = %d/%d, want 1/3", outcome.Score, outcome.MaxScore)
	}
	if len(outcome.Questions) != 2 || !outcome.Questions[0].IsCorrect || outcome.Questions[1].IsCorrect {
		t.Errorf("ScoreSection() questions = %+v", outcome.Questions)
	}
}
