// Package service contains the service layer for the Autotrader API
package service

import (
	"fmt"

	"github.com/nsvirk/autotraderapi/internal/config"
	"github.com/nsvirk/autotraderapi/internal/models"
	"github.com/nsvirk/autotraderapi/internal/repository"
	"github.com/nsvirk/autotraderapi/pkg/utils/zaplogger"
	kitesession "github.com/nsvirk/gokitesession"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type SessionService struct {
	repo        *repository.SessionRepository
	kiteSession *kitesession.Client
	cfg         *config.Config
}

// NewSessionService creates a new service for the session API
func NewSessionService(db *gorm.DB, cfg *config.Config) *SessionService {
	return &SessionService{
		repo:        repository.NewSessionRepository(db),
		kiteSession: kitesession.New(),
		cfg:         cfg,
	}
}

// GenerateSession logs the user in, reusing a cached session when the
// password matches and the enctoken is still valid upstream
func (s *SessionService) GenerateSession(userId, password, totpValue string) (models.SessionModel, error) {

	existingSession, err := s.repo.GetSessionByUserId(userId)
	if err == nil {
		if err := bcrypt.CompareHashAndPassword([]byte(existingSession.HashedPassword), []byte(password)); err == nil {
			isValid, err := s.kiteSession.CheckEnctokenValid(existingSession.Enctoken)
			if err == nil && isValid {
				return *existingSession, nil
			}
		}
	}

	return s.freshSession(userId, password, totpValue)
}

// Relogin always performs a fresh upstream login, replacing any cached
// session. Used when the enctoken has expired mid-day.
func (s *SessionService) Relogin(userId, password, totpValue string) (models.SessionModel, error) {
	return s.freshSession(userId, password, totpValue)
}

// freshSession performs the upstream login and upserts the session row
func (s *SessionService) freshSession(userId, password, totpValue string) (models.SessionModel, error) {
	session, err := s.kiteSession.GenerateSession(userId, password, totpValue)
	if err != nil {
		return models.SessionModel{}, fmt.Errorf("login failed: %v", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.SessionModel{}, fmt.Errorf("failed to hash password: %v", err)
	}

	newSession := models.SessionModel{
		UserId:         session.UserID,
		UserName:       session.Username,
		UserShortname:  session.UserShortname,
		AvatarUrl:      session.AvatarURL,
		PublicToken:    session.PublicToken,
		KfSession:      session.KFSession,
		Enctoken:       session.Enctoken,
		LoginTime:      session.LoginTime,
		HashedPassword: string(hashedPassword),
	}

	if err := s.repo.UpsertSession(&newSession); err != nil {
		return models.SessionModel{}, fmt.Errorf("failed to upsert session: %v", err)
	}

	zaplogger.Info("Session generated", zaplogger.Fields{"user_id": newSession.UserId})
	return newSession, nil
}

// LoginFromConfig logs in with the configured credentials, generating
// the TOTP value from the configured secret. Used by the scheduler and
// the relogin command.
func (s *SessionService) LoginFromConfig(fresh bool) (models.SessionModel, error) {
	totpValue, err := kitesession.GenerateTOTPValue(s.cfg.KiteTotpSecret)
	if err != nil {
		return models.SessionModel{}, fmt.Errorf("failed to generate totp value: %v", err)
	}
	if fresh {
		return s.Relogin(s.cfg.KiteUserID, s.cfg.KitePassword, totpValue)
	}
	return s.GenerateSession(s.cfg.KiteUserID, s.cfg.KitePassword, totpValue)
}

// GenerateTOTP generates a TOTP value for the given secret
func (s *SessionService) GenerateTOTP(totpSecret string) (string, error) {
	return kitesession.GenerateTOTPValue(totpSecret)
}

// DeleteSession deletes the session for the given user
func (s *SessionService) DeleteSession(userId, enctoken string) (int64, error) {
	return s.repo.DeleteSession(userId, enctoken)
}

// CheckEnctokenValid checks if the enctoken is valid upstream
func (s *SessionService) CheckEnctokenValid(enctoken string) (bool, error) {
	return s.kiteSession.CheckEnctokenValid(enctoken)
}

// VerifyUserAuthorization verifies the enctoken for a user. Used by the
// auth middleware.
func (s *SessionService) VerifyUserAuthorization(userID, enctoken string) (*models.SessionModel, error) {
	isValid, err := s.kiteSession.CheckEnctokenValid(enctoken)
	if err != nil || !isValid {
		return nil, err
	}

	session, err := s.repo.GetSessionByUserId(userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("`user_id` %s not found", userID)
		}
		return nil, err
	}

	if enctoken != session.Enctoken {
		return nil, fmt.Errorf("`enctoken` is invalid for `user_id` %s", userID)
	}

	return session, nil
}
