// Package service holds the dating service's use cases. Each operation that
// touches more than one table runs in a single transaction; domain events are
// published only after that transaction commits.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/config"
	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/events"
	"github.com/amora/dating-service/internal/observability"
	"github.com/amora/dating-service/internal/repository"
)

// Dependencies are shared by every service.
type Dependencies struct {
	// Tx runs multi-statement operations atomically.
	Tx database.Transactor
	// Repos executes outside transactions; Repos.WithDB(tx) inside them.
	Repos *repository.Repositories
	// Publisher receives events after commit.
	Publisher events.Publisher
	// Metrics records domain counters.
	Metrics *observability.Metrics
	// Logger is the base service logger.
	Logger zerolog.Logger
	// InlineFameRefresh recomputes fame ratings inside the like and block
	// transactions. Enable it when no worker consumes events.
	InlineFameRefresh bool
}

// Services bundles every use case over one set of dependencies.
type Services struct {
	Likes         *LikeService
	Blocks        *BlockService
	Chat          *ChatService
	Notifications *NotificationService
	Profiles      *ProfileService
}

// New builds the service set.
func New(deps Dependencies, chat config.ChatConfig) *Services {
	return &Services{
		Likes:         NewLikeService(deps),
		Blocks:        NewBlockService(deps),
		Chat:          NewChatService(deps, chat),
		Notifications: NewNotificationService(deps),
		Profiles:      NewProfileService(deps),
	}
}

func (d Dependencies) publish(ctx context.Context, logger zerolog.Logger, evts ...events.Event) {
	if len(evts) == 0 || d.Publisher == nil {
		return
	}
	if err := d.Publisher.Publish(ctx, evts...); err != nil {
		// The state change is already committed; consumers reconcile from the database.
		logger.Warn().Err(err).Int("events", len(evts)).Msg("failed to publish events")
	}
}

// Validator checks command structs and reports the first failing field as a
// domain.ValidationError named after its json tag.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator keyed on json field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewValidationError(fe.Field(), describe(fe))
	}
	return fmt.Errorf("failed to validate: %w", err)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " long"
	case "max":
		return "must be at most " + fe.Param() + " long"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "nefield":
		return "must differ from " + fe.Param()
	case "alphanum":
		return "must contain only letters and digits"
	case "latitude", "longitude":
		return "must be a valid " + fe.Tag()
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// PairCommand names an acting user and the user acted upon.
type PairCommand struct {
	UserID   int64 `json:"user_id" validate:"gt=0"`
	TargetID int64 `json:"target_id" validate:"gt=0,nefield=UserID"`
}

// pairLockKey names the advisory lock serializing writes about two users,
// independent of which side acts.
func pairLockKey(scope string, a, b int64) string {
	low, high := domain.OrderedPair(a, b)
	return fmt.Sprintf("%s:%d:%d", scope, low, high)
}

func actor(id int64) *int64 {
	return &id
}
