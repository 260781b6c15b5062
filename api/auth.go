package api

import (
	"context"
	"strings"
	"time"

	"github.com/iscanabdulhalik/go-esim/core"
)

type AuthService struct {
	gateway  Gateway
	sessions SessionStore
	observer core.SessionObserver
	logger   core.Logger
}

type RegisterInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
}

// Login authenticates and, on success, stores the credential pair and the
// returned user profile in one write.
func (s *AuthService) Login(ctx context.Context, email string, password string) core.Result[core.AuthSession] {
	if !validEmail(email) {
		return badInputResult[core.AuthSession]("a valid email is required")
	}
	if strings.TrimSpace(password) == "" {
		return badInputResult[core.AuthSession]("password is required")
	}
	env := s.gateway.Post(ctx, core.EndpointAuthLogin, map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	return s.storeSession(ctx, core.DecodeResult[core.AuthSession](env))
}

// Register creates an account. When the backend signs the user in right
// away the returned session is stored like a login.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) core.Result[core.AuthSession] {
	if field, ok := missing(map[string]string{
		"firstName": input.FirstName,
		"lastName":  input.LastName,
		"password":  input.Password,
	}); ok {
		return badInputResult[core.AuthSession]("%s is required", field)
	}
	if !validEmail(input.Email) {
		return badInputResult[core.AuthSession]("a valid email is required")
	}
	input.Email = strings.TrimSpace(input.Email)
	env := s.gateway.Post(ctx, core.EndpointAuthRegister, input)
	return s.storeSession(ctx, core.DecodeResult[core.AuthSession](env))
}

// Logout notifies the backend and clears the stored session whatever the
// backend answered. The backend's envelope is returned.
func (s *AuthService) Logout(ctx context.Context) core.Envelope {
	env := s.gateway.Post(ctx, core.EndpointAuthLogout, nil)
	if !env.Success {
		core.Log(ctx, s.logger, core.LevelWarn, "logout call failed, clearing session anyway", map[string]any{
			"code": env.Code,
		})
	}
	if err := s.sessions.Clear(ctx); err != nil {
		core.Log(ctx, s.logger, core.LevelError, "clear session failed", map[string]any{"error": err.Error()})
		return core.FailureEnvelope(0, core.ErrorCodeStoreFailure, core.StoreError(err, "api: clear session").Message)
	}
	if err := s.observer.SessionEnded(ctx, core.SessionEndedEvent{
		Reason:  core.SessionEndLogout,
		Path:    core.EndpointAuthLogout,
		EndedAt: time.Now().UTC(),
	}); err != nil {
		core.Log(ctx, s.logger, core.LevelError, "session observer failed", map[string]any{"error": err.Error()})
	}
	return env
}

func (s *AuthService) ForgotPassword(ctx context.Context, email string) core.Envelope {
	if !validEmail(email) {
		return badInput("a valid email is required")
	}
	return s.gateway.Post(ctx, core.EndpointAuthForgotPassword, map[string]string{
		"email": strings.TrimSpace(email),
	})
}

func (s *AuthService) ResetPassword(ctx context.Context, token string, newPassword string) core.Envelope {
	if field, ok := missing(map[string]string{"token": token, "password": newPassword}); ok {
		return badInput("%s is required", field)
	}
	return s.gateway.Post(ctx, core.EndpointAuthResetPassword, map[string]string{
		"token":    strings.TrimSpace(token),
		"password": newPassword,
	})
}

func (s *AuthService) ChangePassword(ctx context.Context, currentPassword string, newPassword string) core.Envelope {
	if field, ok := missing(map[string]string{"currentPassword": currentPassword, "newPassword": newPassword}); ok {
		return badInput("%s is required", field)
	}
	if currentPassword == newPassword {
		return badInput("new password must differ from the current one")
	}
	return s.gateway.Post(ctx, core.EndpointAuthChangePassword, map[string]string{
		"currentPassword": currentPassword,
		"newPassword":     newPassword,
	})
}

// CurrentUser returns the profile cached at login. found is false when no
// user is signed in.
func (s *AuthService) CurrentUser(ctx context.Context) (user core.User, found bool, err error) {
	return s.sessions.User(ctx)
}

// IsAuthenticated reports whether an access token is stored.
func (s *AuthService) IsAuthenticated(ctx context.Context) bool {
	creds, err := s.sessions.Credentials(ctx)
	return err == nil && creds.HasAccessToken()
}

func (s *AuthService) storeSession(ctx context.Context, result core.Result[core.AuthSession]) core.Result[core.AuthSession] {
	if !result.OK() {
		return result
	}
	creds := result.Value.Credentials()
	if !creds.HasAccessToken() {
		core.Log(ctx, s.logger, core.LevelWarn, "auth response carried no access token", nil)
		return result
	}
	if err := s.sessions.SaveSession(ctx, creds, result.Value.User); err != nil {
		core.Log(ctx, s.logger, core.LevelError, "persist session failed", map[string]any{"error": err.Error()})
		failed := core.FailureEnvelope(0, core.ErrorCodeStoreFailure, core.StoreError(err, "api: persist session").Message)
		return core.Result[core.AuthSession]{Envelope: failed}
	}
	return result
}
