package whitelist

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status enumerates the review states of a submission.
type Status string

const (
	// StatusPending is the initial state of every submission.
	StatusPending Status = "pending"
	// StatusApproved marks a submission accepted by an admin.
	StatusApproved Status = "approved"
	// StatusRejected marks a submission declined by an admin.
	StatusRejected Status = "rejected"
)

var (
	// ErrNotFound indicates that no submission matched the request.
	ErrNotFound = errors.New("whitelist: submission not found")
	// ErrInvalidStatus indicates a status value outside the allowed set.
	ErrInvalidStatus = errors.New("whitelist: invalid status")
	// ErrInvalidID indicates a submission identifier that is not a positive integer.
	ErrInvalidID = errors.New("whitelist: invalid submission id")
)

// ParseStatus validates raw input and returns a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.TrimSpace(value)) {
	case StatusPending:
		return StatusPending, nil
	case StatusApproved:
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

// ValidationError reports required submission fields that were empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("whitelist: missing fields: %s", strings.Join(e.Fields, ", "))
}

// Timestamps are stored as ISO-8601 UTC strings with millisecond precision so
// that lexicographic column ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// Submission models one applicant questionnaire row.
type Submission struct {
	ID           int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Secret       string  `gorm:"column:secret;size:64;not null"`
	Status       Status  `gorm:"column:status;size:16;not null;index:idx_submissions_status"`
	Name         string  `gorm:"column:name;not null"`
	Discord      string  `gorm:"column:discord;not null"`
	Age          *int64  `gorm:"column:age"`
	Experience   *string `gorm:"column:experience;type:text"`
	Availability *string `gorm:"column:availability;type:text"`
	Motivation   *string `gorm:"column:motivation;type:text"`
	UserMessage  *string `gorm:"column:user_message;type:text"`
	AnswersJSON  *string `gorm:"column:answers_json;type:text"`
	AdminNote    *string `gorm:"column:admin_note;type:text"`
	CreatedAt    string  `gorm:"column:created_at;not null;index:idx_submissions_created_at"`
	UpdatedAt    string  `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Submission) TableName() string {
	return "submissions"
}

// Answers deserializes the stored questionnaire answers. A submission without
// answers yields nil.
func (s Submission) Answers() (map[string]string, error) {
	if s.AnswersJSON == nil || *s.AnswersJSON == "" {
		return nil, nil
	}
	answers := map[string]string{}
	if err := json.Unmarshal([]byte(*s.AnswersJSON), &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

// CreateRequest carries normalized applicant input for a new submission.
type CreateRequest struct {
	Name         string
	Discord      string
	Age          *int64
	Experience   *string
	Availability *string
	Motivation   *string
	UserMessage  *string
	Answers      map[string]string
}

// CreateResult returns the identifiers issued for a new submission. The
// secret is disclosed here once and never regenerated.
type CreateResult struct {
	ID     int64
	Secret string
}

// StatusView is the applicant-facing projection of a submission.
type StatusView struct {
	ID        int64   `json:"id"`
	Status    Status  `json:"status"`
	AdminNote *string `json:"admin_note"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// Summary is the admin list projection. It deliberately excludes the secret,
// the questionnaire answers, and the admin note.
type Summary struct {
	ID        int64  `gorm:"column:id" json:"id"`
	Status    Status `gorm:"column:status" json:"status"`
	Name      string `gorm:"column:name" json:"name"`
	Discord   string `gorm:"column:discord" json:"discord"`
	CreatedAt string `gorm:"column:created_at" json:"created_at"`
	UpdatedAt string `gorm:"column:updated_at" json:"updated_at"`
}
