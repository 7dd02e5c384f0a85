package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/lending-service/internal/models"
	"github.com/Dan9191/lending-service/internal/repository"
	"github.com/Dan9191/lending-service/internal/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// RegisterRequest carries the fields of a new user
type RegisterRequest struct {
	Email       string
	Password    string
	EntityType  models.EntityType
	FullName    string
	TradeName   string
	Document    string
	BirthDate   *time.Time
	CreditScore int
	Sector      string
	Region      string
}

const minPasswordLength = 8

func (r RegisterRequest) validate() error {
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidArgument)
	}
	if len(r.Password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidArgument, minPasswordLength)
	}
	if strings.TrimSpace(r.FullName) == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidArgument)
	}
	if r.CreditScore < 0 || r.CreditScore > 1000 {
		return fmt.Errorf("%w: credit score must be between 0 and 1000", ErrInvalidArgument)
	}

	digits := len(utils.NormalizeDocument(r.Document))
	switch r.EntityType {
	case models.EntityIndividual:
		if digits != 11 {
			return fmt.Errorf("%w: CPF must have 11 digits", ErrInvalidArgument)
		}
	case models.EntityBusiness:
		if digits != 14 {
			return fmt.Errorf("%w: CNPJ must have 14 digits", ErrInvalidArgument)
		}
	default:
		return fmt.Errorf("%w: entity type must be PF or PJ", ErrInvalidArgument)
	}
	return nil
}

// Register creates a user together with an empty active account
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := req.validate(); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	role := models.RoleUser
	if slices.Contains(s.config.AdminEmails, req.Email) {
		role = models.RoleAdmin
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: string(hashedPassword),
		EntityType:   req.EntityType,
		FullName:     strings.TrimSpace(req.FullName),
		TradeName:    req.TradeName,
		DocumentHash: utils.HashDocument(req.Document, s.config.HMACSecret),
		BirthDate:    req.BirthDate,
		CreditScore:  req.CreditScore,
		Sector:       req.Sector,
		Region:       req.Region,
		KYCStatus:    models.KYCPending,
		Role:         role,
	}
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			return err
		}
		return tx.CreateAccount(ctx, &models.Account{
			OwnerID: user.ID,
			Balance: decimal.Zero,
			Status:  models.AccountActive,
		})
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("%w: email already registered", ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to register user: %w", err)
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// Login checks credentials and issues a signed token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrUnauthorized
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", user.Email)
	return tokenString, nil
}

// Authenticate resolves a bearer token into the actor it was issued to. KYC
// status and role are read fresh from the store, not from the token.
func (s *Service) Authenticate(ctx context.Context, tokenString string) (models.Actor, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: invalid token subject", ErrUnauthorized)
	}
	user, err := s.store.FindUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Actor{}, fmt.Errorf("%w: unknown user", ErrUnauthorized)
	}
	if err != nil {
		return models.Actor{}, fmt.Errorf("failed to load user: %w", err)
	}
	return models.ActorFor(user), nil
}

// Profile returns the actor's own user record
func (s *Service) Profile(ctx context.Context, actor models.Actor) (*models.User, error) {
	return s.store.FindUserByID(ctx, actor.UserID)
}

// StartKYC (re)opens identity verification for the actor
func (s *Service) StartKYC(ctx context.Context, actor models.Actor) (*models.User, error) {
	user, err := s.store.FindUserByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	switch user.KYCStatus {
	case models.KYCVerified:
		return nil, fmt.Errorf("%w: KYC already verified", ErrConflict)
	case models.KYCPending:
		return user, nil
	}

	if err := s.setKYC(ctx, user.ID, models.KYCPending); err != nil {
		return nil, err
	}
	user.KYCStatus = models.KYCPending
	return user, nil
}

// SetKYCStatus records the verification outcome for a user
func (s *Service) SetKYCStatus(ctx context.Context, admin models.Actor, userID int64, status models.KYCStatus) (*models.User, error) {
	if err := requireAdmin(admin); err != nil {
		return nil, err
	}
	switch status {
	case models.KYCPending, models.KYCVerified, models.KYCFailed:
	default:
		return nil, fmt.Errorf("%w: unknown KYC status %q", ErrInvalidArgument, status)
	}

	if err := s.setKYC(ctx, userID, status); err != nil {
		return nil, err
	}
	return s.store.FindUserByID(ctx, userID)
}

func (s *Service) setKYC(ctx context.Context, userID int64, status models.KYCStatus) error {
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.SetKYCStatus(ctx, userID, status)
	})
	if err != nil {
		return err
	}
	s.log.Infof("KYC status of user %d set to %s", userID, status)
	return nil
}
