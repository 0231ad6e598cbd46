package fivem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
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
	opServiceNew = "fivem.service.new"
	opPush       = "fivem.push_snapshot"
	opRead       = "fivem.read_snapshot"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// ServiceConfig describes the dependencies of the game-state relay.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service persists and serves the live player snapshot pushed by the game
// server. Writes are last-write-wins: a delayed push may overwrite a newer
// one, the single trusted source makes that acceptable.
type Service struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs a Service after validating its dependencies.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{db: cfg.Database, clock: clock, logger: logger}, nil
}

type storedPayload struct {
	TS      json.RawMessage `json:"ts"`
	Server  json.RawMessage `json:"server"`
	Players json.RawMessage `json:"players"`
}

// Push normalizes the payload and overwrites the singleton snapshot row.
func (s *Service) Push(ctx context.Context, request PushRequest) error {
	now := s.clock()
	state := normalizePush(request, now)

	encoded, err := json.Marshal(storedPayload{
		TS:      state.TS,
		Server:  state.Server,
		Players: state.Players,
	})
	if err != nil {
		s.logError(opPush, "payload_encode_failed", err)
		return newServiceError(opPush, "payload_encode_failed", err)
	}

	snapshot := Snapshot{
		ID:        snapshotRowID,
		DataJSON:  string(encoded),
		UpdatedAt: formatTimestamp(now),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data_json", "updated_at"}),
		}).
		Create(&snapshot).Error
	if err != nil {
		s.logError(opPush, "upsert_failed", err)
		return newServiceError(opPush, "upsert_failed", err)
	}

	return nil
}

// Read returns the latest snapshot, or the empty default when nothing has
// ever been pushed. Corrupt stored payloads degrade to the empty default
// rather than failing the read.
func (s *Service) Read(ctx context.Context) (State, error) {
	var snapshot Snapshot
	err := s.db.WithContext(ctx).
		Where("id = ?", snapshotRowID).
		Take(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emptyState(), nil
	}
	if err != nil {
		s.logError(opRead, "query_failed", err)
		return State{}, newServiceError(opRead, "query_failed", err)
	}

	state := emptyState()
	var payload storedPayload
	if err := json.Unmarshal([]byte(snapshot.DataJSON), &payload); err != nil {
		s.logger.Warn("stored snapshot payload unreadable", zap.Error(err))
	} else {
		if value, ok := presentValue(payload.TS); ok {
			state.TS = value
		}
		if value, ok := presentValue(payload.Server); ok {
			state.Server = value
		}
		if value, ok := presentValue(payload.Players); ok {
			state.Players = value
		}
	}
	state.UpdatedAt = &snapshot.UpdatedAt

	return state, nil
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
	s.logger.Error("fivem service error", attrs...)
}
