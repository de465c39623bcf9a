package questions

import (
	"fmt"
	"strings"
)

// QuizQuestion is a four-option multiple choice question. CorrectAnswer is
// one of "a", "b", "c" or "d".
type QuizQuestion struct {
	Question      string `json:"question"`
	OptionA       string `json:"a"`
	OptionB       string `json:"b"`
	OptionC       string `json:"c"`
	OptionD       string `json:"d"`
	CorrectAnswer string `json:"answer"`
}

// Flashcard is a question with a free-text answer.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuizFormat prompts for multiple choice questions.
type QuizFormat struct{}

// Name implements Format.
func (QuizFormat) Name() string { return "quiz" }

// SummaryPrompt implements Format.
func (QuizFormat) SummaryPrompt(n int, summary string) string {
	return fmt.Sprintf(`You are an assistant that creates multiple-choice questions.
Given the following context, generate %d multiple choice questions with 4 options each.
Return a JSON array of objects with properties question, a, b, c, d, answer, where answer is the letter of the correct option. Return only the JSON and nothing else.
doc_summary: %s`, n, summary)
}

// PassagePrompt implements Format.
func (QuizFormat) PassagePrompt(n int, passage string) string {
	return fmt.Sprintf(`You are an assistant that creates multiple-choice questions.
Given the following context, generate %d multiple choice questions with 4 options each.
Return a JSON array of objects with properties question, a, b, c, d, answer, where answer is the letter of the correct option. Return only the JSON and nothing else.
context: %s`, n, passage)
}

// Normalize implements Format. The answer letter is lower-cased and must
// name one of the four options.
func (QuizFormat) Normalize(q QuizQuestion) (QuizQuestion, error) {
	if err := requireFields(
		[2]string{"question", q.Question},
		[2]string{"a", q.OptionA},
		[2]string{"b", q.OptionB},
		[2]string{"c", q.OptionC},
		[2]string{"d", q.OptionD},
	); err != nil {
		return q, err
	}
	q.CorrectAnswer = strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	switch q.CorrectAnswer {
	case "a", "b", "c", "d":
		return q, nil
	}
	return q, fmt.Errorf("answer %q is not one of a, b, c, d", q.CorrectAnswer)
}

// FlashcardFormat prompts for question and answer flashcards.
type FlashcardFormat struct{}

// Name implements Format.
func (FlashcardFormat) Name() string { return "flashcard" }

// SummaryPrompt implements Format.
func (FlashcardFormat) SummaryPrompt(n int, summary string) string {
	return fmt.Sprintf(`You are an assistant that creates flashcards.
Given the following context, generate %d flashcards with question and answer.
Return a JSON array of objects with properties question, answer. Return only the JSON and nothing else.
doc_summary: %s`, n, summary)
}

// PassagePrompt implements Format.
func (FlashcardFormat) PassagePrompt(n int, passage string) string {
	return fmt.Sprintf(`You are an assistant that creates flashcards.
Given the following context, generate %d flashcards with question and answer.
Return a JSON array of objects with properties question, answer. Return only the JSON and nothing else.
context: %s`, n, passage)
}

// Normalize implements Format.
func (FlashcardFormat) Normalize(c Flashcard) (Flashcard, error) {
	c.Question = strings.TrimSpace(c.Question)
	c.Answer = strings.TrimSpace(c.Answer)
	return c, requireFields([2]string{"question", c.Question}, [2]string{"answer", c.Answer})
}
