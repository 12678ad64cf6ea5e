package domain

// ScoreQuestion awards the question's full point value iff the selection is
// set-equal to the correct option set. Near misses on multi-answer questions
// score zero; there is no partial credit.
func ScoreQuestion(q Question, selected []int) uint32 {
	if len(selected) != len(q.CorrectOptions) {
		return 0
	}
	correct := make(map[int]struct{}, len(q.CorrectOptions))
	for _, idx := range q.CorrectOptions {
		correct[idx] = struct{}{}
	}
	matched := make(map[int]struct{}, len(selected))
	for _, idx := range selected {
		if _, ok := correct[idx]; !ok {
			return 0
		}
		if _, dup := matched[idx]; dup {
			// Duplicate picks of one index do not count as two answers.
			return 0
		}
		matched[idx] = struct{}{}
	}
	return q.Points
}

// ScoreAnswers scores a submission against a quiz. Answers referencing
// unknown question ids are skipped; questions without a matching answer
// score zero. Each question is scored at most once: only the first
// selection for a given id counts, so repeating an id cannot inflate the
// total. The returned slice realigns the selections to the quiz's
// question order, empty where no answer was given.
func ScoreAnswers(quiz *QuizSet, answers []AnswerSelection) (uint32, [][]int) {
	indexByID := make(map[string]int, len(quiz.Questions))
	for i, q := range quiz.Questions {
		indexByID[q.ID] = i
	}

	var total uint32
	aligned := make([][]int, len(quiz.Questions))
	for i := range aligned {
		aligned[i] = []int{}
	}
	answered := make(map[int]struct{}, len(answers))
	for _, answer := range answers {
		i, ok := indexByID[answer.QuestionID]
		if !ok {
			continue
		}
		if _, dup := answered[i]; dup {
			continue
		}
		answered[i] = struct{}{}
		aligned[i] = answer.Selected
		total += ScoreQuestion(quiz.Questions[i], answer.Selected)
	}
	return total, aligned
}
