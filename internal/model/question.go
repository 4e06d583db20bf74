package model

import (
	"github.com/cloudtrack/certprep/internal/exam"
)

// ImportQuestion is one question in an admin import request.
type ImportQuestion struct {
	ID            string   `json:"id" binding:"omitempty,max=64,slug"`
	Prompt        string   `json:"prompt" binding:"required,min=1,max=2000"`
	Options       []string `json:"options" binding:"required,min=2,max=8,dive,required,max=500"`
	CorrectOption int      `json:"correct_option" binding:"min=0"`
	Difficulty    string   `json:"difficulty" binding:"required,oneof=easy medium hard"`
	Category      string   `json:"category" binding:"required,max=64,slug"`
	Explanation   string   `json:"explanation" binding:"omitempty,max=2000"`
}

// ImportQuestionsRequest is the payload for queueing a question import.
type ImportQuestionsRequest struct {
	Questions []ImportQuestion `json:"questions" binding:"required,min=1,max=500,dive"`
}

// QuestionListQuery holds the query parameters of the admin question listing.
type QuestionListQuery struct {
	Category string `form:"category" binding:"omitempty,max=64,slug"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PerPage  int    `form:"per_page,default=20" binding:"min=1,max=100"`
}

// ToQuestion converts the request item into an engine question.
func (q ImportQuestion) ToQuestion() exam.Question {
	return exam.Question{
		ID:            q.ID,
		Prompt:        q.Prompt,
		Options:       q.Options,
		CorrectOption: q.CorrectOption,
		Difficulty:    exam.Difficulty(q.Difficulty),
		Category:      q.Category,
		Explanation:   q.Explanation,
	}
}
