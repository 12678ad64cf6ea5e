package domain

import "testing"

func multiQuestion(t *testing.T) Question {
	t.Helper()
	q, err := NewQuestion("q1-0", "pick two", []string{"a", "b", "c"}, []int{0, 2}, 10, "multiple")
	if err != nil {
		t.Fatalf("new question: %v", err)
	}
	return q
}

func TestScoreQuestionExactMatch(t *testing.T) {
	q := multiQuestion(t)

	cases := []struct {
		name     string
		selected []int
		want     uint32
	}{
		{"exact", []int{0, 2}, 10},
		{"exact reordered", []int{2, 0}, 10},
		{"subset", []int{0}, 0},
		{"superset", []int{0, 1, 2}, 0},
		{"wrong pair", []int{0, 1}, 0},
		{"empty", nil, 0},
		{"duplicate picks", []int{0, 0}, 0},
	}
	for _, tc := range cases {
		if got := ScoreQuestion(q, tc.selected); got != tc.want {
			t.Errorf("%s: got %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestScoreAnswersIgnoresUnknownIDs(t *testing.T) {
	single, err := NewQuestion("q1-1", "pick one", []string{"a", "b"}, []int{1}, 5, "single")
	if err != nil {
		t.Fatalf("new question: %v", err)
	}
	quiz := &QuizSet{ID: 1, Questions: []Question{multiQuestion(t), single}}

	total, aligned := ScoreAnswers(quiz, []AnswerSelection{
		{QuestionID: "q1-0", Selected: []int{2, 0}},
		{QuestionID: "1699999999999-3-xyz", Selected: []int{0}}, // client-minted id, skipped
	})
	if total != 10 {
		t.Fatalf("expected 10 points, got %d", total)
	}
	if len(aligned) != 2 {
		t.Fatalf("expected answers aligned to 2 questions, got %d", len(aligned))
	}
	if len(aligned[1]) != 0 {
		t.Fatalf("unanswered question should have empty selection, got %v", aligned[1])
	}
}

func TestScoreAnswersDuplicateIDScoresOnce(t *testing.T) {
	quiz := &QuizSet{ID: 1, Questions: []Question{multiQuestion(t)}}

	total, _ := ScoreAnswers(quiz, []AnswerSelection{
		{QuestionID: "q1-0", Selected: []int{0, 2}},
		{QuestionID: "q1-0", Selected: []int{0, 2}},
	})
	if total != 10 {
		t.Fatalf("repeated question id must score once, got %d", total)
	}

	// The first selection wins; a wrong first answer is not repaired by a
	// correct repeat.
	total, aligned := ScoreAnswers(quiz, []AnswerSelection{
		{QuestionID: "q1-0", Selected: []int{1}},
		{QuestionID: "q1-0", Selected: []int{0, 2}},
	})
	if total != 0 {
		t.Fatalf("only the first selection counts, got %d", total)
	}
	if len(aligned[0]) != 1 || aligned[0][0] != 1 {
		t.Fatalf("recorded answer should be the first selection, got %v", aligned[0])
	}
}

func TestScoreAnswersUnansweredScoresZero(t *testing.T) {
	quiz := &QuizSet{ID: 1, Questions: []Question{multiQuestion(t)}}
	total, _ := ScoreAnswers(quiz, nil)
	if total != 0 {
		t.Fatalf("expected 0, got %d", total)
	}
}
