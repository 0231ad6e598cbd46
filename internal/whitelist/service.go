package whitelist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase       = errors.New("database handle is required")
	errMissingSecretProvider = errors.New("secret provider is required")
	noOpLogger               = zap.NewNop()
)

// ServiceError wraps an internal failure with a stable operation code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "whitelist.service.new"
	opCreate       = "whitelist.create_submission"
	opLookup       = "whitelist.lookup_status"
	opList         = "whitelist.list_submissions"
	opGet          = "whitelist.get_submission"
	opUpdateStatus = "whitelist.update_status"
	opRemove       = "whitelist.remove_submission"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the submission lifecycle service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Secrets  SecretProvider
	Logger   *zap.Logger
}

// Service implements the submission lifecycle: intake, applicant status
// lookup, and the admin review operations.
type Service struct {
	db      *gorm.DB
	clock   func() time.Time
	secrets SecretProvider
	logger  *zap.Logger
}

// NewService constructs a Service after validating its dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Secrets == nil {
		return nil, newServiceError(opServiceNew, "missing_secret_provider", errMissingSecretProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:      cfg.Database,
		clock:   clock,
		secrets: cfg.Secrets,
		logger:  logger,
	}, nil
}

// Create validates and persists a new submission. Every submission starts
// pending with a fresh secret; the secret in the result is the only time it
// is disclosed to the applicant.
func (s *Service) Create(ctx context.Context, request CreateRequest) (CreateResult, error) {
	if strings.TrimSpace(request.Name) == "" || strings.TrimSpace(request.Discord) == "" {
		return CreateResult{}, &ValidationError{Fields: []string{"name", "discord"}}
	}

	secret, err := s.secrets.NewSecret()
	if err != nil {
		s.logError(opCreate, "secret_generation_failed", err)
		return CreateResult{}, newServiceError(opCreate, "secret_generation_failed", err)
	}

	var answersJSON *string
	if len(request.Answers) > 0 {
		encoded, err := json.Marshal(request.Answers)
		if err != nil {
			s.logError(opCreate, "answers_encode_failed", err)
			return CreateResult{}, newServiceError(opCreate, "answers_encode_failed", err)
		}
		serialized := string(encoded)
		answersJSON = &serialized
	}

	createdAt := formatTimestamp(s.clock())
	submission := Submission{
		Secret:       secret,
		Status:       StatusPending,
		Name:         strings.TrimSpace(request.Name),
		Discord:      strings.TrimSpace(request.Discord),
		Age:          request.Age,
		Experience:   request.Experience,
		Availability: request.Availability,
		Motivation:   request.Motivation,
		UserMessage:  request.UserMessage,
		AnswersJSON:  answersJSON,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	if err := s.db.WithContext(ctx).Create(&submission).Error; err != nil {
		s.logError(opCreate, "insert_failed", err)
		return CreateResult{}, newServiceError(opCreate, "insert_failed", err)
	}

	s.logger.Info("submission created",
		zap.Int64("submission_id", submission.ID),
		zap.String("discord", submission.Discord))

	return CreateResult{ID: submission.ID, Secret: secret}, nil
}

// Lookup returns the applicant-facing status view for an id+secret pair. A
// wrong secret and an unknown id fail identically with ErrNotFound so the
// endpoint does not leak which ids exist.
func (s *Service) Lookup(ctx context.Context, id int64, secret string) (StatusView, error) {
	if id <= 0 {
		return StatusView{}, ErrInvalidID
	}

	var submission Submission
	err := s.db.WithContext(ctx).
		Where("id = ? AND secret = ?", id, secret).
		Take(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return StatusView{}, ErrNotFound
	}
	if err != nil {
		s.logError(opLookup, "query_failed", err, zap.Int64("submission_id", id))
		return StatusView{}, newServiceError(opLookup, "query_failed", err)
	}

	return StatusView{
		ID:        submission.ID,
		Status:    submission.Status,
		AdminNote: submission.AdminNote,
		CreatedAt: submission.CreatedAt,
		UpdatedAt: submission.UpdatedAt,
	}, nil
}

// List returns submission summaries, newest first, optionally filtered to a
// single status value. The filter is applied verbatim: an unknown status
// matches nothing rather than failing.
func (s *Service) List(ctx context.Context, statusFilter string) ([]Summary, error) {
	query := s.db.WithContext(ctx).
		Model(&Submission{}).
		Order("created_at DESC, id DESC")
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}

	summaries := []Summary{}
	if err := query.Find(&summaries).Error; err != nil {
		s.logError(opList, "query_failed", err, zap.String("status_filter", statusFilter))
		return nil, newServiceError(opList, "query_failed", err)
	}

	return summaries, nil
}

// Get returns the full submission row for admin review.
func (s *Service) Get(ctx context.Context, id int64) (Submission, error) {
	if id <= 0 {
		return Submission{}, ErrInvalidID
	}

	var submission Submission
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&submission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Submission{}, ErrNotFound
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.Int64("submission_id", id))
		return Submission{}, newServiceError(opGet, "query_failed", err)
	}

	return submission, nil
}

// UpdateStatus overwrites the status and admin note of a submission and
// refreshes its updated_at timestamp. Any status may replace any other; the
// review workflow allows admins to correct earlier decisions.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status, adminNote *string) error {
	if id <= 0 {
		return ErrInvalidID
	}
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}

	updates := map[string]any{
		"status":     status,
		"admin_note": adminNote,
		"updated_at": formatTimestamp(s.clock()),
	}
	result := s.db.WithContext(ctx).
		Model(&Submission{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		s.logError(opUpdateStatus, "update_failed", result.Error, zap.Int64("submission_id", id))
		return newServiceError(opUpdateStatus, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("submission status updated",
		zap.Int64("submission_id", id),
		zap.String("status", string(status)))

	return nil
}

// Remove hard-deletes a submission. There is no tombstone; a removed id is
// gone for good, though ids are never reissued.
func (s *Service) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}

	result := s.db.WithContext(ctx).Delete(&Submission{}, id)
	if result.Error != nil {
		s.logError(opRemove, "delete_failed", result.Error, zap.Int64("submission_id", id))
		return newServiceError(opRemove, "delete_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Info("submission removed", zap.Int64("submission_id", id))

	return nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("whitelist service error", attrs...)
}
