package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Frusadev/frusablog-backend/internal/apperr"
	"github.com/Frusadev/frusablog-backend/internal/authz"
	"github.com/Frusadev/frusablog-backend/internal/hash"
	"github.com/Frusadev/frusablog-backend/internal/logging"
	"github.com/Frusadev/frusablog-backend/internal/mail"
	"github.com/Frusadev/frusablog-backend/internal/models"
)

const (
	// LoginSessionTTL is how long a browsing session stays valid.
	LoginSessionTTL = 365 * 24 * time.Hour
	// AuthSessionTTL is how long a verification link stays valid.
	AuthSessionTTL = 30 * time.Minute
	// StaleAfter forces re-verification for accounts that have not been
	// seen for this long.
	StaleAfter = 170 * 24 * time.Hour
)

// ErrInvalidCredentials covers both unknown email and wrong password, so
// the response never reveals which one it was.
var ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthenticated)

type Service struct {
	DB              *gorm.DB
	Mail            mail.Dispatcher
	VerificationURL string
	LoginURL        string
	AppEmail        string
}

type RegisterInput struct {
	Email          string
	Username       string
	DisplayName    string
	Password       string
	PasswordRepeat string
}

// Register creates the role, the user and a pending verification session
// in one transaction, then dispatches the welcome mail. The mail is sent
// after commit: a failed dispatch leaves the user registered.
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", in.Username)

	if in.Password != in.PasswordRepeat {
		return fmt.Errorf("%w: passwords do not match", apperr.ErrValidation)
	}
	if in.Email == "" || in.Username == "" {
		return fmt.Errorf("%w: email and username are required", apperr.ErrValidation)
	}

	var authSession models.AuthSession
	var user models.User

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", in.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: username taken", apperr.ErrConflict)
		}
		if err := tx.Model(&models.User{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: email used", apperr.ErrConflict)
		}
		if err := tx.Model(&models.WhitelistedEmail{}).Where("email = ?", in.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: email blocked", apperr.ErrConflict)
		}

		role := models.NewRole(models.RoleUser)
		hashed, err := hash.HashPassword(in.Password)
		if err != nil {
			return err
		}
		user = models.User{
			Username:       in.Username,
			Email:          in.Email,
			DisplayName:    in.DisplayName,
			HashedPassword: hashed,
			RoleID:         role.ID,
			LastLogin:      time.Now().UTC(),
		}
		authSession, err = s.newAuthSession(in.Username)
		if err != nil {
			return err
		}

		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		// Self-ownership: profile mutations and email access go through
		// this grant, the same way post/comment creators own theirs.
		if _, err := authz.CreatePermission(tx, role.ID, authz.ResourceUser, in.Username, authz.ActionCrud); err != nil {
			return err
		}
		return tx.Create(&authSession).Error
	})
	if err != nil {
		return err
	}

	s.sendVerification(ctx, &user, authSession.ID, "welcome", "Thank you for joining.")
	l.Info("registered new user", "email", user.Email)
	return nil
}

// Login checks credentials, then the verification gate: unverified or
// stale accounts get a fresh verification mail instead of a session, even
// with a correct password.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, *models.LoginSession, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if !hash.CheckPassword(user.HashedPassword, password) {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.AccountVerified || user.LastLogin.Before(time.Now().UTC().Add(-StaleAfter)) {
		authSession, err := s.newAuthSession(user.Username)
		if err != nil {
			return nil, nil, err
		}
		if err := s.DB.WithContext(ctx).Create(&authSession).Error; err != nil {
			return nil, nil, err
		}
		s.sendVerification(ctx, &user, authSession.ID, "verification", "Account verification")
		l.Warn("login refused, verification required", "username", user.Username)
		return nil, nil, apperr.ErrNeedsVerification
	}

	token, err := NewToken()
	if err != nil {
		return nil, nil, err
	}
	now := time.Now().UTC()
	session := models.LoginSession{
		ID:        token,
		Username:  user.Username,
		IssuedAt:  now,
		ExpiresAt: now.Add(LoginSessionTTL),
	}
	if err := s.DB.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, nil, err
	}

	l.Info("user logged in", "username", user.Username)
	return &user, &session, nil
}

// VerifyAuthSession consumes a verification token: marks the owner
// verified, refreshes last_login and deletes the session so the link
// cannot be replayed. Returns the login page to redirect to.
func (s *Service) VerifyAuthSession(ctx context.Context, token string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "auth.verify")

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var session models.AuthSession
		if err := tx.Where("id = ?", token).First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrSessionExpired
			}
			return err
		}
		if session.ExpiresAt.Before(time.Now().UTC()) {
			return apperr.ErrSessionExpired
		}

		updates := map[string]any{
			"account_verified": true,
			"last_login":       time.Now().UTC(),
		}
		if err := tx.Model(&models.User{}).Where("username = ?", session.Username).Updates(updates).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.AuthSession{}, "id = ?", token).Error; err != nil {
			return err
		}
		l.Info("account verified", "username", session.Username)
		return nil
	})
	if err != nil {
		return "", err
	}
	return s.LoginURL, nil
}

// ResolveCurrentUser turns a session cookie token into the user it
// belongs to, refreshing last_login on the way. Every protected endpoint
// goes through here.
func (s *Service) ResolveCurrentUser(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: no session cookie", apperr.ErrUnauthenticated)
	}

	var session models.LoginSession
	if err := s.DB.WithContext(ctx).Where("id = ?", token).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown session", apperr.ErrUnauthenticated)
		}
		return nil, err
	}
	if session.ExpiresAt.Before(time.Now().UTC()) {
		return nil, fmt.Errorf("%w: session expired", apperr.ErrUnauthenticated)
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Preload("Role").Where("username = ?", session.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown user", apperr.ErrUnauthenticated)
		}
		return nil, err
	}

	user.LastLogin = time.Now().UTC()
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", user.Username).
		Update("last_login", user.LastLogin).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout deletes the session row. A second logout with the same token
// fails with Unauthenticated rather than succeeding silently; that is
// part of the contract.
func (s *Service) Logout(ctx context.Context, token string) error {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	if token == "" {
		return fmt.Errorf("%w: no session cookie", apperr.ErrUnauthenticated)
	}
	var session models.LoginSession
	if err := s.DB.WithContext(ctx).Where("id = ?", token).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: unknown session", apperr.ErrUnauthenticated)
		}
		return err
	}
	if err := s.DB.WithContext(ctx).Delete(&models.LoginSession{}, "id = ?", token).Error; err != nil {
		return err
	}
	l.Info("user logged out", "username", session.Username)
	return nil
}

func (s *Service) newAuthSession(username string) (models.AuthSession, error) {
	token, err := NewToken()
	if err != nil {
		return models.AuthSession{}, err
	}
	now := time.Now().UTC()
	return models.AuthSession{
		ID:        token,
		Username:  username,
		IssuedAt:  now,
		ExpiresAt: now.Add(AuthSessionTTL),
	}, nil
}

func (s *Service) sendVerification(ctx context.Context, user *models.User, token, templateName, subject string) {
	link := fmt.Sprintf("%s?token=%s", s.VerificationURL, token)
	err := s.Mail.Send(ctx, user.Email, subject, templateName, map[string]any{
		"user_name":         user.DisplayName,
		"verification_link": link,
		"expiry_minutes":    int(AuthSessionTTL.Minutes()),
		"contact_email":     s.AppEmail,
	}, fmt.Sprintf("Hello %s,\n\nhere is your verification link: %s", user.DisplayName, link))
	if err != nil {
		logging.FromContext(ctx).Error("verification mail failed", "email", user.Email, "error", err)
	}
}
