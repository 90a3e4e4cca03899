package approaches

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultCodeLanguage = "java"

var (
	errMissingRepository = errors.New("repository is required")
	errMissingLookup     = errors.New("question lookup is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingText       = errors.New("text content is required")
	noOpLogger           = zap.NewNop()
)

const (
	opServiceNew     = "approaches.service.new"
	opAdd            = "approaches.add"
	opUpdate         = "approaches.update"
	opRemove         = "approaches.remove"
	opUsage          = "approaches.usage"
	opListQuestion   = "approaches.list_for_question"
	opListAll        = "approaches.list_all"
	opRemoveQuestion = "approaches.remove_all_for_question"
	opDetail         = "approaches.detail"
)

// ServiceError wraps infrastructure failures with a dotted operation code.
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

// Code exposes the machine-readable failure code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// QuestionLookup resolves question titles for denormalization at creation
// time. found=false means the question does not exist.
type QuestionLookup interface {
	LookupQuestionTitle(ctx context.Context, questionID string) (title string, found bool, err error)
}

// ServiceConfig describes the dependencies for the approach store service.
type ServiceConfig struct {
	Repository          Repository
	Questions           QuestionLookup
	Clock               func() time.Time
	IDProvider          IDProvider
	DefaultCodeLanguage string
	Logger              *zap.Logger
}

// Service enforces the per-question slot and size quotas for every mutation
// of a user's approach collection. It performs no cache invalidation itself;
// that belongs to the enclosing layer.
type Service struct {
	repo            Repository
	questions       QuestionLookup
	clock           func() time.Time
	idProvider      IDProvider
	defaultLanguage string
	logger          *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, newServiceError(opServiceNew, "missing_repository", errMissingRepository)
	}
	if cfg.Questions == nil {
		return nil, newServiceError(opServiceNew, "missing_question_lookup", errMissingLookup)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	language := strings.TrimSpace(cfg.DefaultCodeLanguage)
	if language == "" {
		language = defaultCodeLanguage
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		repo:            cfg.Repository,
		questions:       cfg.Questions,
		clock:           clock,
		idProvider:      cfg.IDProvider,
		defaultLanguage: language,
		logger:          logger,
	}, nil
}

// Add validates the question, checks the slot limit and then the combined
// size limit, and appends the new approach. Nothing is persisted on
// rejection.
func (s *Service) Add(ctx context.Context, userID, ownerName, questionID string, draft Draft) (Approach, error) {
	if strings.TrimSpace(draft.TextContent) == "" {
		return Approach{}, newServiceError(opAdd, "missing_text_content", errMissingText)
	}

	title, found, err := s.questions.LookupQuestionTitle(ctx, questionID)
	if err != nil {
		s.logError(opAdd, "question_lookup_failed", err, zap.String("question_id", questionID))
		return Approach{}, newServiceError(opAdd, "question_lookup_failed", err)
	}
	if !found {
		return Approach{}, &NotFoundError{Resource: "question", ID: questionID}
	}

	collection, err := s.repo.Load(ctx, userID)
	if err != nil {
		s.logError(opAdd, "collection_load_failed", err, zap.String("user_id", userID))
		return Approach{}, newServiceError(opAdd, "collection_load_failed", err)
	}
	if collection == nil {
		collection = NewCollection(userID, ownerName)
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAdd, "id_generation_failed", err)
		return Approach{}, newServiceError(opAdd, "id_generation_failed", err)
	}

	now := s.clock().UTC()
	language := strings.TrimSpace(draft.CodeLanguage)
	if language == "" {
		language = s.defaultLanguage
	}
	approach := Approach{
		ID:               id,
		QuestionID:       questionID,
		QuestionTitle:    title,
		TextContent:      draft.TextContent,
		CodeContent:      draft.CodeContent,
		CodeLanguage:     language,
		CreatedAtSeconds: now.Unix(),
		UpdatedAtSeconds: now.Unix(),
	}
	approach.recomputeSize()

	if err := collection.Add(questionID, approach, now); err != nil {
		return Approach{}, err
	}
	if err := s.repo.Save(ctx, collection); err != nil {
		s.logError(opAdd, "collection_save_failed", err, zap.String("user_id", userID))
		return Approach{}, err
	}
	return approach, nil
}

// Update applies a partial content change under the simulate-then-commit
// size check. Rejections leave the stored content byte-identical.
func (s *Service) Update(ctx context.Context, userID, questionID, approachID string, patch ContentPatch) (Approach, error) {
	if patch.empty() {
		existing, err := s.Detail(ctx, userID, questionID, approachID)
		if err != nil {
			return Approach{}, err
		}
		return existing, nil
	}

	collection, err := s.repo.Load(ctx, userID)
	if err != nil {
		s.logError(opUpdate, "collection_load_failed", err, zap.String("user_id", userID))
		return Approach{}, newServiceError(opUpdate, "collection_load_failed", err)
	}
	if collection == nil {
		return Approach{}, &NotFoundError{Resource: "approach", ID: approachID}
	}

	updated, err := collection.Update(questionID, approachID, patch, s.clock().UTC())
	if err != nil {
		return Approach{}, err
	}
	if err := s.repo.Save(ctx, collection); err != nil {
		s.logError(opUpdate, "collection_save_failed", err, zap.String("user_id", userID))
		return Approach{}, err
	}
	return updated, nil
}

// Remove deletes the identified approach. A missing approach is a
// NotFoundError at this layer; deletes are strict, not silently tolerated.
func (s *Service) Remove(ctx context.Context, userID, questionID, approachID string) error {
	collection, err := s.repo.Load(ctx, userID)
	if err != nil {
		s.logError(opRemove, "collection_load_failed", err, zap.String("user_id", userID))
		return newServiceError(opRemove, "collection_load_failed", err)
	}
	if collection == nil {
		return &NotFoundError{Resource: "approach", ID: approachID}
	}

	if !collection.Remove(questionID, approachID, s.clock().UTC()) {
		return &NotFoundError{Resource: "approach", ID: approachID}
	}

	if collection.TotalCount == 0 {
		if err := s.repo.Delete(ctx, collection); err != nil {
			s.logError(opRemove, "collection_delete_failed", err, zap.String("user_id", userID))
			return err
		}
		return nil
	}
	if err := s.repo.Save(ctx, collection); err != nil {
		s.logError(opRemove, "collection_save_failed", err, zap.String("user_id", userID))
		return err
	}
	return nil
}

// Usage is a pure read. Users with no collection or no approaches for the
// question get the zero-usage shape, never an error.
func (s *Service) Usage(ctx context.Context, userID, questionID string) (Usage, error) {
	collection, err := s.repo.Load(ctx, userID)
	if err != nil {
		s.logError(opUsage, "collection_load_failed", err, zap.String("user_id", userID))
		return Usage{}, newServiceError(opUsage, "collection_load_failed", err)
	}
	if collection == nil {
		return newUsage(0, 0), nil
	}
	return collection.UsageForQuestion(questionID), nil
}

// ApproachCount returns how many approaches the user holds for the
// question. Missing collections count as zero.
func (s *Service) ApproachCount(ctx context.Context, userID, questionID string) (int, error) {
	usage, err := s.Usage(ctx, userID, questionID)
	if err != nil {
		return 0, err
	}
	return usage.ApproachCount, nil
}

// ListForQuestion returns the user's approaches for one question in
// submission order. Missing collections yield an empty list.
func (s *Service) ListForQuestion(ctx context.Context, userID, questionID string) ([]Approach, error) {
	collection, err := s.repo.Load(ctx, userID)
	if err != nil {
		s.logError(opListQuestion, "collection_load_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opListQuestion, "collection_load_failed", err)
	}
	if collection == nil {
		return []Approach{}, nil
	}
	return collection.ForQuestion(questionID), nil
}

// Detail returns one approach, verifying it belongs to the given question.
func (s *Service) Detail(ctx context.Context, userID, questionID, approachID string) (Approach, error) {
	collection, err := s.repo.Load(ctx, userID)
	if err != nil {
		s.logError(opDetail, "collection_load_failed", err, zap.String("user_id", userID))
		return Approach{}, newServiceError(opDetail, "collection_load_failed", err)
	}
	if collection == nil {
		return Approach{}, &NotFoundError{Resource: "approach", ID: approachID}
	}
	approach, ok := collection.Find(approachID)
	if !ok || approach.QuestionID != questionID {
		return Approach{}, &NotFoundError{Resource: "approach", ID: approachID}
	}
	return approach, nil
}

// ListAllForUser returns every approach the user has written, most recently
// created first.
func (s *Service) ListAllForUser(ctx context.Context, userID string) ([]Approach, error) {
	collection, err := s.repo.Load(ctx, userID)
	if err != nil {
		s.logError(opListAll, "collection_load_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opListAll, "collection_load_failed", err)
	}
	if collection == nil {
		return []Approach{}, nil
	}
	return collection.AllFlat(), nil
}

// RemoveAllForQuestion sweeps every user's collection when a question is
// deleted upstream. The sweep is best-effort across collections: a failed
// save is logged and skipped so the remaining users are still cleaned up,
// and the operation is safe to retry. Returns the number of approaches
// removed.
func (s *Service) RemoveAllForQuestion(ctx context.Context, questionID string) (int, error) {
	collections, err := s.repo.LoadAll(ctx)
	if err != nil {
		s.logError(opRemoveQuestion, "load_all_failed", err, zap.String("question_id", questionID))
		return 0, newServiceError(opRemoveQuestion, "load_all_failed", err)
	}

	now := s.clock().UTC()
	removed := 0
	failures := 0
	for _, collection := range collections {
		count := collection.RemoveAllForQuestion(questionID, now)
		if count == 0 {
			continue
		}

		var saveErr error
		if collection.TotalCount == 0 {
			saveErr = s.repo.Delete(ctx, collection)
		} else {
			saveErr = s.repo.Save(ctx, collection)
		}
		if saveErr != nil {
			failures++
			s.logError(opRemoveQuestion, "collection_save_failed", saveErr,
				zap.String("user_id", collection.UserID),
				zap.String("question_id", questionID))
			continue
		}
		removed += count
	}

	if failures > 0 {
		return removed, newServiceError(opRemoveQuestion, "partial_failure",
			fmt.Errorf("%d of %d collections failed", failures, len(collections)))
	}
	return removed, nil
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
	s.logger.Error("approach store error", attrs...)
}
