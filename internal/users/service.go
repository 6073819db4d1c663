package users

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vitorbmulford/bsf-api/pkg/auth"
	"github.com/vitorbmulford/bsf-api/pkg/config"
	dbpkg "github.com/vitorbmulford/bsf-api/pkg/db"
	"github.com/vitorbmulford/bsf-api/pkg/db/models"
	"github.com/vitorbmulford/bsf-api/pkg/enums"
	pkgerrors "github.com/vitorbmulford/bsf-api/pkg/errors"
	"github.com/vitorbmulford/bsf-api/pkg/pagination"
	"github.com/vitorbmulford/bsf-api/pkg/security"
)

const (
	avatarFolder      = "avatares"
	minPasswordLength = 6
)

// RegisterInput carries the fields accepted when creating an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    *string
	Type     enums.UserType
}

// UpdateUserInput carries partial profile updates. Nil fields are left untouched.
type UpdateUserInput struct {
	Name  *string
	Phone *string
}

// AuthResult is the outcome of a successful login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// Page is one window of the active user listing.
type Page struct {
	Items      []models.User
	NextCursor string
}

// Service exposes the user directory.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, params pagination.Params) (*Page, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error)
	ChangePassword(ctx context.Context, id uuid.UUID, current, updated string) error
	UpdateAvatar(ctx context.Context, id uuid.UUID, filename string, file io.Reader) (*models.User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
}

type service struct {
	repo     UserRepository
	jwt      config.JWTConfig
	password config.PasswordConfig
	uploader Uploader
	now      func() time.Time
}

// NewService wires the user directory with its dependencies. The uploader
// is optional; without it avatar updates are rejected.
func NewService(repo UserRepository, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig, uploader Uploader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if jwtCfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &service{
		repo:     repo,
		jwt:      jwtCfg,
		password: pwCfg,
		uploader: uploader,
		now:      time.Now,
	}, nil
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}

	userType := input.Type
	if userType == "" {
		userType = enums.UserTypeCustomer
	}
	if !userType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user type")
	}

	hash, err := security.HashPassword(input.Password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "security: hash password")
	}

	user := &models.User{
		Type:         userType,
		Name:         strings.TrimSpace(input.Name),
		Phone:        input.Phone,
		Email:        email,
		PasswordHash: hash,
		Status:       enums.UserStatusActive,
	}
	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_users_email") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert user")
	}
	return created, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.repo.FindActiveByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find user by email")
	}

	match, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "security: verify password")
	}
	if !match {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := s.now()
	token, err := auth.MintAccessToken(s.jwt, now, auth.AccessTokenPayload{
		UserID: user.ID,
		Type:   user.Type,
		Email:  user.Email,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "auth: mint access token")
	}

	return &AuthResult{
		Token:     token,
		ExpiresAt: now.Add(s.jwt.AccessTokenTTL()),
		User:      user,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find user")
	}
	if user.Status != enums.UserStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return user, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	user, err := s.repo.FindActiveByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find user by email")
	}
	return user, nil
}

func (s *service) List(ctx context.Context, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListActive(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list users")
	}

	page := &Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		user.Name = name
	}
	if input.Phone != nil {
		user.Phone = input.Phone
	}

	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update user")
	}
	return saved, nil
}

func (s *service) ChangePassword(ctx context.Context, id uuid.UUID, current, updated string) error {
	if len(updated) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	match, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "security: verify password")
	}
	if !match {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "current password does not match")
	}

	hash, err := security.HashPassword(updated, s.password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "security: hash password")
	}

	user.PasswordHash = hash
	if _, err := s.repo.Save(ctx, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update password")
	}
	return nil
}

func (s *service) UpdateAvatar(ctx context.Context, id uuid.UUID, filename string, file io.Reader) (*models.User, error) {
	if s.uploader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "avatar uploads are disabled")
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.uploader.Save(avatarFolder, filename, file)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storage: save avatar")
	}

	previous := user.AvatarURL
	user.AvatarURL = &url
	saved, err := s.repo.Save(ctx, user)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update avatar")
	}
	if previous != nil && *previous != url {
		_ = s.uploader.Remove(*previous)
	}
	return saved, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	user.Status = enums.UserStatusInactive
	if _, err := s.repo.Save(ctx, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: deactivate user")
	}
	return nil
}

func (s *service) ExistsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	exists, err := s.repo.ExistsActive(ctx, id)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check user")
	}
	return exists, nil
}
