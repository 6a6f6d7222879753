package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/amora/dating-service/internal/database"
	"github.com/amora/dating-service/internal/domain"
	"github.com/amora/dating-service/internal/pagination"
	"github.com/amora/dating-service/internal/repository"
)

// Profile search parameters. Anything else in a search query is rejected so
// private columns such as email or password_hash can never be probed.
var (
	searchFilters = map[string]bool{
		"username":          true,
		"first_name":        true,
		"last_name":         true,
		"city":              true,
		"gender":            true,
		"sexual_preference": true,
		"is_online":         true,
		"is_verified":       true,
	}
	searchSorts = map[string]bool{
		"username":    true,
		"first_name":  true,
		"city":        true,
		"fame_rating": true,
		"created_at":  true,
	}
	booleanFilters = map[string]bool{"is_online": true, "is_verified": true}
)

// Discover query parameters.
const (
	paramGender = "gender"
	paramMinAge = "min_age"
	paramMaxAge = "max_age"
)

// ProfilePatch is a partial profile update. Nil fields are left unchanged.
type ProfilePatch struct {
	Username         *string    `json:"username" validate:"omitempty,alphanum,min=3,max=30"`
	FirstName        *string    `json:"first_name" validate:"omitempty,min=1,max=50"`
	LastName         *string    `json:"last_name" validate:"omitempty,min=1,max=50"`
	Gender           *string    `json:"gender" validate:"omitempty,oneof=male female other"`
	SexualPreference *string    `json:"sexual_preference" validate:"omitempty,oneof=male female other any"`
	Biography        *string    `json:"biography" validate:"omitempty,max=500"`
	BirthDate        *time.Time `json:"birth_date"`
	Latitude         *float64   `json:"latitude" validate:"omitempty,latitude"`
	Longitude        *float64   `json:"longitude" validate:"omitempty,longitude"`
	City             *string    `json:"city" validate:"omitempty,max=100"`
}

// Record converts the set fields to a repository payload.
func (p ProfilePatch) Record() repository.Record {
	rec := repository.Record{}
	set := func(key string, ok bool, value any) {
		if ok {
			rec[key] = value
		}
	}
	set("username", p.Username != nil, deref(p.Username))
	set("first_name", p.FirstName != nil, deref(p.FirstName))
	set("last_name", p.LastName != nil, deref(p.LastName))
	set("gender", p.Gender != nil, deref(p.Gender))
	set("sexual_preference", p.SexualPreference != nil, deref(p.SexualPreference))
	set("biography", p.Biography != nil, deref(p.Biography))
	set("city", p.City != nil, deref(p.City))
	if p.BirthDate != nil {
		rec["birth_date"] = *p.BirthDate
	}
	if p.Latitude != nil {
		rec["latitude"] = *p.Latitude
	}
	if p.Longitude != nil {
		rec["longitude"] = *p.Longitude
	}
	return rec
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// DiscoverQuery narrows the discovery feed.
type DiscoverQuery struct {
	Gender string `json:"gender" validate:"omitempty,oneof=male female other"`
	MinAge int    `json:"min_age" validate:"omitempty,min=18,max=120"`
	MaxAge int    `json:"max_age" validate:"omitempty,min=18,max=120"`
}

// ProfileService reads and edits member profiles, photos and interests.
type ProfileService struct {
	deps     Dependencies
	validate *Validator
	logger   zerolog.Logger
	now      func() time.Time
}

// NewProfileService creates a profile service.
func NewProfileService(deps Dependencies) *ProfileService {
	return &ProfileService{
		deps:     deps,
		validate: NewValidator(),
		logger:   deps.Logger.With().Str("component", "profile_service").Logger(),
		now:      time.Now,
	}
}

// Get returns a profile or a NotFoundError.
func (s *ProfileService) Get(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.deps.Repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.NewNotFoundError("user", domain.FormatID(userID))
	}
	return user, nil
}

// Search filters profiles from query-string parameters. Text columns match
// case-insensitive substrings; the rest match exactly. Paging parameters are
// read from the same query.
func (s *ProfileService) Search(ctx context.Context, query url.Values, baseURL string) (pagination.Response[*domain.User], error) {
	req := pagination.RequestFromQuery(query)
	if req.Sort != "" && !searchSorts[req.Sort] {
		return pagination.Response[*domain.User]{}, domain.NewValidationError("sort", fmt.Sprintf("cannot sort by %q", req.Sort))
	}

	criteria := repository.Criteria{}
	for key, values := range pagination.Filters(query) {
		if !searchFilters[key] {
			return pagination.Response[*domain.User]{}, domain.NewValidationError(key, "is not a searchable field")
		}
		value := strings.TrimSpace(values[0])
		if value == "" {
			continue
		}
		if booleanFilters[key] {
			b, err := strconv.ParseBool(value)
			if err != nil {
				return pagination.Response[*domain.User]{}, domain.NewValidationError(key, "must be true or false")
			}
			criteria[key] = b
			continue
		}
		criteria[key] = value
	}

	return s.deps.Repos.Users.SearchPaginated(ctx, criteria, req, baseURL, repository.SearchOptions{})
}

// UpdateProfile applies a validated patch. An empty patch returns the
// profile unchanged.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID int64, patch ProfilePatch) (*domain.User, error) {
	if err := s.validate.Struct(patch); err != nil {
		return nil, err
	}
	if patch.BirthDate != nil && patch.BirthDate.After(s.now().AddDate(-18, 0, 0)) {
		return nil, domain.NewValidationError("birth_date", "must be at least 18 years ago")
	}

	user, err := s.deps.Repos.Users.Update(ctx, userID, patch.Record())
	if err != nil {
		if _, ok := repository.IsUniqueViolation(err); ok && patch.Username != nil {
			return nil, domain.NewAlreadyExistsError("user", deref(patch.Username))
		}
		return nil, err
	}
	if user == nil {
		return nil, domain.NewNotFoundError("user", domain.FormatID(userID))
	}
	s.logger.Debug().Int64("user_id", userID).Int("fields", len(patch.Record())).Msg("profile updated")
	return user, nil
}

// SetOnline records presence.
func (s *ProfileService) SetOnline(ctx context.Context, userID int64, online bool) error {
	return s.deps.Repos.Users.SetOnline(ctx, userID, online)
}

// Discover pages through candidate profiles for userID, skipping the user,
// anyone with a block either way and anyone already liked, best rated first.
func (s *ProfileService) Discover(ctx context.Context, userID int64, q DiscoverQuery, req pagination.Request, baseURL string) (pagination.Response[*domain.User], error) {
	if err := s.validate.Struct(q); err != nil {
		return pagination.Response[*domain.User]{}, err
	}
	if q.MinAge > 0 && q.MaxAge > 0 && q.MinAge > q.MaxAge {
		return pagination.Response[*domain.User]{}, domain.NewValidationError("min_age", "must not exceed max_age")
	}

	limits := s.deps.Repos.Users.Limits()
	params := limits.Calculate(req)
	users, total, err := s.deps.Repos.Users.Discover(ctx, userID, repository.DiscoverFilter{
		Gender: q.Gender,
		MinAge: q.MinAge,
		MaxAge: q.MaxAge,
		Now:    s.now(),
	}, params)
	if err != nil {
		return pagination.Response[*domain.User]{}, err
	}

	filters := url.Values{}
	if q.Gender != "" {
		filters.Set(paramGender, q.Gender)
	}
	if q.MinAge > 0 {
		filters.Set(paramMinAge, strconv.Itoa(q.MinAge))
	}
	if q.MaxAge > 0 {
		filters.Set(paramMaxAge, strconv.Itoa(q.MaxAge))
	}
	return pagination.NewResponse(users, total, params.Page, params.Limit, baseURL, limits.QueryParams(req, filters)), nil
}

// AddHashtag tags userID with name, creating the hashtag if needed.
func (s *ProfileService) AddHashtag(ctx context.Context, userID int64, name string) (*domain.Hashtag, error) {
	var tag *domain.Hashtag
	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		repos := s.deps.Repos.WithDB(tx)
		var err error
		if tag, err = repos.Hashtags.FindOrCreate(ctx, name); err != nil {
			return err
		}
		return repos.Hashtags.AttachToUser(ctx, userID, tag.ID)
	})
	if err != nil {
		return nil, missingUser(err, userID)
	}
	return tag, nil
}

// RemoveHashtag untags userID. It reports whether the tag was attached.
func (s *ProfileService) RemoveHashtag(ctx context.Context, userID, hashtagID int64) (bool, error) {
	return s.deps.Repos.Hashtags.DetachFromUser(ctx, userID, hashtagID)
}

// Hashtags lists userID's hashtags.
func (s *ProfileService) Hashtags(ctx context.Context, userID int64) ([]*domain.Hashtag, error) {
	return s.deps.Repos.Hashtags.ListForUser(ctx, userID)
}

// PopularHashtags returns the most used hashtags.
func (s *ProfileService) PopularHashtags(ctx context.Context, limit int) ([]*domain.HashtagUsage, error) {
	return s.deps.Repos.Hashtags.Popular(ctx, limit)
}

// AddPhoto appends a photo to userID's gallery. The first photo becomes the
// primary one; galleries are capped at repository.MaxPhotosPerUser.
func (s *ProfileService) AddPhoto(ctx context.Context, userID int64, photoURL string) (*domain.Photo, error) {
	photoURL = strings.TrimSpace(photoURL)
	if photoURL == "" {
		return nil, domain.NewValidationError("url", "is required")
	}

	var photo *domain.Photo
	err := s.deps.Tx.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := database.LockXact(ctx, tx, fmt.Sprintf("photos:%d", userID)); err != nil {
			return err
		}
		repos := s.deps.Repos.WithDB(tx)

		count, err := repos.Photos.CountByUser(ctx, userID)
		if err != nil {
			return err
		}
		if count >= repository.MaxPhotosPerUser {
			return domain.NewValidationError("photos", fmt.Sprintf("at most %d photos per profile", repository.MaxPhotosPerUser))
		}

		photo, err = repos.Photos.Create(ctx, repository.Record{
			"user_id":    userID,
			"url":        photoURL,
			"is_primary": count == 0,
			"position":   int(count),
		})
		return err
	})
	if err != nil {
		return nil, missingUser(err, userID)
	}
	return photo, nil
}

// missingUser turns a foreign key violation on user_id into a NotFoundError.
func missingUser(err error, userID int64) error {
	if _, ok := repository.IsForeignKeyViolation(err); ok {
		return domain.NewNotFoundError("user", domain.FormatID(userID))
	}
	return err
}

// SetPrimaryPhoto makes photoID the only primary photo of userID.
func (s *ProfileService) SetPrimaryPhoto(ctx context.Context, userID, photoID int64) error {
	return s.deps.Repos.Photos.SetPrimary(ctx, userID, photoID)
}

// Photos lists userID's gallery in display order.
func (s *ProfileService) Photos(ctx context.Context, userID int64) ([]*domain.Photo, error) {
	return s.deps.Repos.Photos.ListByUser(ctx, userID)
}
