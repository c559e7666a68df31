package biolinks

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew = "biolinks.service.new"

	fieldOperation = "operation"
	fieldReason    = "reason"
	fieldUserID    = "user_id"
	fieldBiolinkID = "biolink_id"
	fieldLinkID    = "link_id"

	reasonMissingDatabase   = "missing_database"
	reasonMissingIDProvider = "missing_id_provider"
	reasonMissingActor      = "missing_actor"
	reasonNotFound          = "not_found"
	reasonInvalidInput      = "invalid_input"
	reasonIDGeneration      = "id_generation_failed"
	reasonQueryFailed       = "query_failed"
	reasonInsertFailed      = "insert_failed"
	reasonUpdateFailed      = "update_failed"
	reasonDeleteFailed      = "delete_failed"
	reasonTransactionFailed = "transaction_failed"
)

// ServiceConfig describes the dependencies of the resource store.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service is the resource store for biolinks and their children.
// It holds no mutable state; every operation is a unit of work against the database.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	guard      *Guard
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, NewServiceError(KindInternal, opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, NewServiceError(KindInternal, opServiceNew, reasonMissingIDProvider, errMissingIDProvider)
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
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		guard:      NewGuard(cfg.Database),
	}, nil
}

// Guard exposes the ownership guard bound to the service database.
func (s *Service) Guard() *Guard {
	return s.guard
}

func (s *Service) ready(operation string) error {
	if s == nil || s.db == nil {
		s.logError(operation, reasonMissingDatabase, errMissingDatabase)
		return NewServiceError(KindInternal, operation, reasonMissingDatabase, errMissingDatabase)
	}
	if s.idProvider == nil {
		s.logError(operation, reasonMissingIDProvider, errMissingIDProvider)
		return NewServiceError(KindInternal, operation, reasonMissingIDProvider, errMissingIDProvider)
	}
	return nil
}

func (s *Service) nowSeconds() int64 {
	return s.clock().UTC().Unix()
}

func (s *Service) newID(operation string) (string, error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(operation, reasonIDGeneration, err)
		return "", NewServiceError(KindInternal, operation, reasonIDGeneration, err)
	}
	return id, nil
}

// guardFailure converts a guard error into the caller-facing taxonomy.
func (s *Service) guardFailure(operation string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, ErrMissingActor):
		return NewServiceError(KindUnauthorized, operation, reasonMissingActor, err)
	case errors.Is(err, ErrResourceNotFound):
		return NewServiceError(KindNotFound, operation, reasonNotFound, err)
	default:
		s.logError(operation, reasonQueryFailed, err, fields...)
		return NewServiceError(KindInternal, operation, reasonQueryFailed, err)
	}
}

func (s *Service) internal(operation, reason string, err error, fields ...zap.Field) error {
	s.logError(operation, reason, err, fields...)
	return NewServiceError(KindInternal, operation, reason, err)
}

func invalidInput(operation string, err error) error {
	return NewServiceError(KindInvalidInput, operation, reasonInvalidInput, err)
}

func isServiceError(err error) bool {
	var serviceErr *ServiceError
	return errors.As(err, &serviceErr)
}

// finish classifies a transaction result; unclassified errors become internal failures.
func (s *Service) finish(operation string, err error, fields ...zap.Field) error {
	if err == nil || isServiceError(err) {
		return err
	}
	return s.internal(operation, reasonTransactionFailed, err, fields...)
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String(fieldOperation, operation),
		zap.String(fieldReason, reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("biolinks service error", attrs...)
}
