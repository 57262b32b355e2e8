// Package feedback provides the domain model for AI feedback: criteria,
// their rank ordering within a feedback configuration, and the persisted
// session with its per-criterion results.
package feedback

import (
	"time"

	"github.com/catalpa-cl/espresso/internal/domain/llm"
)

// Criterion is one evaluation axis with its own prompt template and an
// optionally assigned model. With no assigned model the process default
// model is used.
type Criterion struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt"`
	ModelID   string    `json:"model_id,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RankedCriterion is a criterion attached to a feedback at a rank.
// Rank is unique within a feedback's active set and defines both
// processing and display order.
type RankedCriterion struct {
	Criterion
	Rank int `json:"rank"`
}

// Feedback is the ordered set of active criteria for a task, plus the
// task and course context available to prompt templates.
type Feedback struct {
	ID              string            `json:"id"`
	TaskTitle       string            `json:"task_title"`
	TaskDescription string            `json:"task_description"`
	TaskContext     string            `json:"task_context"`
	CourseName      string            `json:"course_name"`
	CourseContext   string            `json:"course_context"`
	Active          bool              `json:"active"`
	Criteria        []RankedCriterion `json:"criteria,omitempty"`
}

// SessionStatus is the overall outcome of one orchestration run.
type SessionStatus string

const (
	StatusSuccess        SessionStatus = "success"
	StatusPartialSuccess SessionStatus = "partial_success"
	StatusFailed         SessionStatus = "failed"
)

// ResultStatus is the outcome of a single criterion within a session.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// CriterionResult is the finalized outcome for one criterion: either the
// accumulated feedback text or the error kind that terminated it.
type CriterionResult struct {
	ID                string        `json:"id"`
	Rank              int           `json:"rank"`
	CriterionID       string        `json:"criterion_id"`
	Status            ResultStatus  `json:"status"`
	Text              string        `json:"text,omitempty"`
	ErrorKind         llm.ErrorKind `json:"error_kind,omitempty"`
	ModelExternalName string        `json:"model_external_name,omitempty"`
	Usage             llm.Usage     `json:"usage"`
	CreatedAt         time.Time     `json:"created_at"`
}

// Session is one submission's end-to-end orchestration record.
// CorrelationID is the idempotency key: a session is persisted at most
// once per correlation id.
type Session struct {
	ID            string            `json:"id"`
	FeedbackID    string            `json:"feedback_id"`
	CorrelationID string            `json:"correlation_id"`
	Submission    string            `json:"submission"`
	Status        SessionStatus     `json:"status"`
	NPSScore      *int              `json:"nps_score,omitempty"`
	Results       []CriterionResult `json:"results"`
	CreatedAt     time.Time         `json:"created_at"`
}

// FoldStatus derives the session status from its criterion results:
// Success when all succeeded, Failed when none did, PartialSuccess
// otherwise. An empty result list (cancelled before any criterion
// finished) folds to Failed.
func FoldStatus(results []CriterionResult) SessionStatus {
	var ok, failed int
	for _, r := range results {
		if r.Status == ResultSuccess {
			ok++
		} else {
			failed++
		}
	}
	switch {
	case ok > 0 && failed == 0:
		return StatusSuccess
	case ok > 0:
		return StatusPartialSuccess
	default:
		return StatusFailed
	}
}
