package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hezretaly/toefl/internal/models"
)

// ===== ANSWER NORMALIZATION =====

var (
	errMalformedPayload = errors.New("malformed answer payload")
	errTokenFormat      = errors.New("not a letter or zero-based index")
	errTokenRange       = errors.New("index out of range")
)

// TableCellIndex is a positional (row, column) pick on a table question
type TableCellIndex struct {
	Row int
	Col int
}

// DecodeChoicePayload reads a choice answer: a JSON array whose items are
// letters, numbers or numeric strings. Duplicate tokens are dropped.
func DecodeChoicePayload(raw json.RawMessage) ([]string, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var items []interface{}
	if err := decoder.Decode(&items); err != nil || items == nil {
		return nil, errMalformedPayload
	}

	seen := make(map[string]bool, len(items))
	tokens := make([]string, 0, len(items))
	for _, item := range items {
		var token string
		switch v := item.(type) {
		case string:
			token = strings.ToLower(strings.TrimSpace(v))
		case json.Number:
			n, err := v.Int64()
			if err != nil {
				return nil, errMalformedPayload
			}
			token = strconv.FormatInt(n, 10)
		default:
			return nil, errMalformedPayload
		}
		if seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens, nil
}

// ResolveChoiceToken maps a letter (a=0, b=1, ...) or a zero-based index onto
// a position in an ordered option list of the given length.
func ResolveChoiceToken(token string, optionCount int) (int, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	if t == "" {
		return 0, errTokenFormat
	}

	var index int
	if len(t) == 1 && t[0] >= 'a' && t[0] <= 'z' {
		index = int(t[0] - 'a')
	} else {
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, errTokenFormat
		}
		index = n
	}

	if index < 0 || index >= optionCount {
		return 0, errTokenRange
	}
	return index, nil
}

// DecodeTablePayload reads a table answer given either as a grid
// {"<row>": {"<col>": true}} or as a list [{"row": r, "col": c}]. Cells set to
// false are ignored and duplicates collapse.
func DecodeTablePayload(raw json.RawMessage) ([]TableCellIndex, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errMalformedPayload
	}

	var cells []TableCellIndex
	switch trimmed[0] {
	case '{':
		var grid map[string]map[string]bool
		if err := json.Unmarshal(trimmed, &grid); err != nil {
			return nil, errMalformedPayload
		}
		for rowKey, columns := range grid {
			row, err := strconv.Atoi(strings.TrimSpace(rowKey))
			if err != nil {
				return nil, errMalformedPayload
			}
			for colKey, selected := range columns {
				col, err := strconv.Atoi(strings.TrimSpace(colKey))
				if err != nil {
					return nil, errMalformedPayload
				}
				if selected {
					cells = append(cells, TableCellIndex{Row: row, Col: col})
				}
			}
		}
	case '[':
		var pairs []struct {
			Row *int `json:"row"`
			Col *int `json:"col"`
		}
		if err := json.Unmarshal(trimmed, &pairs); err != nil {
			return nil, errMalformedPayload
		}
		for _, pair := range pairs {
			if pair.Row == nil || pair.Col == nil {
				return nil, errMalformedPayload
			}
			cells = append(cells, TableCellIndex{Row: *pair.Row, Col: *pair.Col})
		}
	default:
		return nil, errMalformedPayload
	}

	return dedupeCells(cells), nil
}

// ResolveTableCell translates positional indices into the (row id, column id)
// key using rows and columns in canonical order.
func ResolveTableCell(cell TableCellIndex, rows []models.TableRow, columns []models.TableColumn) (models.AnswerKey, error) {
	if cell.Row < 0 || cell.Row >= len(rows) || cell.Col < 0 || cell.Col >= len(columns) {
		return models.AnswerKey{}, errTokenRange
	}
	return models.CellKey(rows[cell.Row].ID, columns[cell.Col].ID), nil
}

// NormalizeAnswer turns one raw payload into the canonical keys of the
// question. Malformed payloads yield ValidationErrors, unresolvable picks a
// SelectionError.
func NormalizeAnswer(question *models.Question, raw json.RawMessage) ([]models.AnswerKey, error) {
	field := fmt.Sprintf("answers.%d.%d", question.ContainerID(), question.ID)

	if question.Type.IsTable() {
		cells, err := DecodeTablePayload(raw)
		if err != nil {
			return nil, NewValidationError(field, "table answers must be a row/column grid or a list of {row, col} pairs", string(raw))
		}

		rows := models.OrderRows(question.Rows)
		columns := models.OrderColumns(question.Columns)
		keys := make([]models.AnswerKey, 0, len(cells))
		for _, cell := range cells {
			key, err := ResolveTableCell(cell, rows, columns)
			if err != nil {
				return nil, &SelectionError{
					QuestionID: question.ID,
					Token:      fmt.Sprintf("row %d, col %d", cell.Row, cell.Col),
					Reason:     fmt.Sprintf("table has %d rows and %d columns", len(rows), len(columns)),
				}
			}
			keys = append(keys, key)
		}
		return keys, nil
	}

	tokens, err := DecodeChoicePayload(raw)
	if err != nil {
		return nil, NewValidationError(field, "choice answers must be a list of letters or indices", string(raw))
	}

	options := models.OrderOptions(question.Options)
	seen := make(map[uint]bool, len(tokens))
	keys := make([]models.AnswerKey, 0, len(tokens))
	for _, token := range tokens {
		index, err := ResolveChoiceToken(token, len(options))
		if err != nil {
			reason := err.Error()
			if errors.Is(err, errTokenRange) {
				reason = fmt.Sprintf("question has %d options", len(options))
			}
			return nil, &SelectionError{QuestionID: question.ID, Token: token, Reason: reason}
		}
		optionID := options[index].ID
		if seen[optionID] {
			continue
		}
		seen[optionID] = true
		keys = append(keys, models.OptionKey(optionID))
	}
	return keys, nil
}

func dedupeCells(cells []TableCellIndex) []TableCellIndex {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].Col < cells[j].Col
	})

	result := make([]TableCellIndex, 0, len(cells))
	for i, cell := range cells {
		if i > 0 && cell == cells[i-1] {
			continue
		}
		result = append(result, cell)
	}
	return result
}

// ===== SCORING =====

// QuestionOutcome is the graded result of one question for one student
type QuestionOutcome struct {
	QuestionID uint `json:"question_id"`
	Points     int  `json:"points"`
	Awarded    int  `json:"awarded"`
	IsCorrect  bool `json:"is_correct"`
}

// SectionOutcome sums question outcomes. No scaling is applied.
type SectionOutcome struct {
	Score     int               `json:"score"`
	MaxScore  int               `json:"max_score"`
	Questions []QuestionOutcome `json:"questions"`
}

// PointsFor is the weight of a question: multi-cell tables and prose summaries
// with more than one correct answer count double.
func PointsFor(qType models.QuestionType, correctCount int) int {
	if (qType == models.QuestionProseSummary || qType == models.QuestionTable) && correctCount > 1 {
		return 2
	}
	return 1
}

// SameAnswerSet reports set equality of two key lists
func SameAnswerSet(a, b []models.AnswerKey) bool {
	setA := keySet(a)
	setB := keySet(b)
	if len(setA) != len(setB) {
		return false
	}
	for key := range setA {
		if !setB[key] {
			return false
		}
	}
	return true
}

// ScoreQuestion awards the question's points only when the student's set is
// non-empty and equal to the correct set. There is no partial credit.
func ScoreQuestion(qType models.QuestionType, correct, user []models.AnswerKey) (awarded, points int) {
	points = PointsFor(qType, len(keySet(correct)))
	if len(keySet(user)) == 0 || !SameAnswerSet(correct, user) {
		return 0, points
	}
	return points, points
}

// IsCorrect judges a question for review screens. Single selection types need
// exactly one submitted key equal to the single correct key; the others need
// full set equality.
func IsCorrect(qType models.QuestionType, correct, user []models.AnswerKey) bool {
	if qType.IsSingleSelection() {
		userSet := keySet(user)
		correctSet := keySet(correct)
		if len(userSet) != 1 || len(correctSet) != 1 {
			return false
		}
		return SameAnswerSet(correct, user)
	}
	awarded, _ := ScoreQuestion(qType, correct, user)
	return awarded > 0
}

// ScoreSection grades every question against the student's answers, keyed by
// question id.
func ScoreSection(questions []*models.Question, answers map[uint][]models.AnswerKey) SectionOutcome {
	outcome := SectionOutcome{Questions: make([]QuestionOutcome, 0, len(questions))}
	for _, question := range questions {
		correct := CorrectKeys(question)
		user := answers[question.ID]
		awarded, points := ScoreQuestion(question.Type, correct, user)

		outcome.Score += awarded
		outcome.MaxScore += points
		outcome.Questions = append(outcome.Questions, QuestionOutcome{
			QuestionID: question.ID,
			Points:     points,
			Awarded:    awarded,
			IsCorrect:  IsCorrect(question.Type, correct, user),
		})
	}
	return outcome
}

// CorrectKeys extracts the canonical correct keys of a loaded question
func CorrectKeys(question *models.Question) []models.AnswerKey {
	keys := make([]models.AnswerKey, 0, len(question.CorrectAnswers))
	for _, correct := range question.CorrectAnswers {
		if key := correct.Key(question.Type); !key.IsZero() {
			keys = append(keys, key)
		}
	}
	return keys
}

// GroupAnswerKeys collects stored answer rows per question in canonical form
func GroupAnswerKeys(questions []*models.Question, answers []*models.UserAnswer) map[uint][]models.AnswerKey {
	types := make(map[uint]models.QuestionType, len(questions))
	for _, question := range questions {
		types[question.ID] = question.Type
	}

	grouped := make(map[uint][]models.AnswerKey)
	for _, answer := range answers {
		qType, ok := types[answer.QuestionID]
		if !ok {
			continue
		}
		if key := answer.Key(qType); !key.IsZero() {
			grouped[answer.QuestionID] = append(grouped[answer.QuestionID], key)
		}
	}
	return grouped
}

func keySet(keys []models.AnswerKey) map[models.AnswerKey]bool {
	set := make(map[models.AnswerKey]bool, len(keys))
	for _, key := range keys {
		if !key.IsZero() {
			set[key] = true
		}
	}
	return set
}
