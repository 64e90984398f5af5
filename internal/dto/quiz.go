package dto

import "time"

// QuestionResponse represents a question in the API response
// @Description Multiple-choice question
type QuestionResponse struct {
	ID           int64             `json:"id"`
	Subject      string            `json:"subject"`
	QuestionText string            `json:"question_text"`
	Choices      map[string]string `json:"choices"`
	Answers      []string          `json:"answers"`
}

// QuizResponse is a random sample of questions
// @Description Generated quiz
type QuizResponse struct {
	Subject   string             `json:"subject,omitempty"`
	Keywords  []string           `json:"keywords,omitempty"`
	Questions []QuestionResponse `json:"questions"`
}

// CheckAnswerRequest represents a selected answer in the API request
// @Description Request body for checking an answer
type CheckAnswerRequest struct {
	QuestionID int64  `json:"question_id"`
	Selected   string `json:"selected"`
}

// CheckAnswerResponse represents the answer check result
type CheckAnswerResponse struct {
	Correct bool   `json:"correct"`
	Answer  string `json:"answer"` // first listed answer
}

// StatsResponse summarizes the question bank
// @Description Question bank statistics
type StatsResponse struct {
	TotalQuestions      int            `json:"total_questions"`
	TotalSubjects       int            `json:"total_subjects"`
	TotalKeywords       int            `json:"total_keywords"`
	QuestionsPerSubject map[string]int `json:"questions_per_subject"`
	LastGeneratedAt     *time.Time     `json:"last_generated_at"`
}
