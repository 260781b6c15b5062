package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	StorageKeyAccessToken  = "authToken"
	StorageKeyRefreshToken = "refreshToken"
	StorageKeyUserData     = "userData"
)

// SessionKeys lists every key removed when a session ends.
var SessionKeys = []string{StorageKeyAccessToken, StorageKeyRefreshToken, StorageKeyUserData}

type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c Credentials) HasAccessToken() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

func (c Credentials) HasRefreshToken() bool {
	return strings.TrimSpace(c.RefreshToken) != ""
}

type SessionEndReason string

const (
	SessionEndMissingRefreshToken SessionEndReason = "missing_refresh_token"
	SessionEndRefreshFailed       SessionEndReason = "refresh_failed"
	SessionEndLogout              SessionEndReason = "logout"
)

type SessionEndedEvent struct {
	Reason    SessionEndReason
	RequestID string
	Path      string
	Cause     string
	EndedAt   time.Time
}

// KeyValueTokenStore keeps the credential pair in a KeyValueStore under the
// authToken/refreshToken keys.
type KeyValueTokenStore struct {
	kv KeyValueStore
}

func NewKeyValueTokenStore(kv KeyValueStore) *KeyValueTokenStore {
	return &KeyValueTokenStore{kv: kv}
}

func (s *KeyValueTokenStore) KeyValueStore() KeyValueStore {
	if s == nil {
		return nil
	}
	return s.kv
}

func (s *KeyValueTokenStore) Credentials(ctx context.Context) (Credentials, error) {
	if s == nil || s.kv == nil {
		return Credentials{}, fmt.Errorf("core: token store is not configured")
	}
	access, _, err := s.kv.Get(ctx, StorageKeyAccessToken)
	if err != nil {
		return Credentials{}, err
	}
	refresh, _, err := s.kv.Get(ctx, StorageKeyRefreshToken)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		AccessToken:  strings.TrimSpace(access),
		RefreshToken: strings.TrimSpace(refresh),
	}, nil
}

func (s *KeyValueTokenStore) SaveCredentials(ctx context.Context, creds Credentials) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	if !creds.HasAccessToken() {
		return fmt.Errorf("core: access token is required")
	}
	values := map[string]string{
		StorageKeyAccessToken: strings.TrimSpace(creds.AccessToken),
	}
	if creds.HasRefreshToken() {
		values[StorageKeyRefreshToken] = strings.TrimSpace(creds.RefreshToken)
	}
	return s.kv.MultiSet(ctx, values)
}

func (s *KeyValueTokenStore) Clear(ctx context.Context) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	return s.kv.MultiRemove(ctx, SessionKeys...)
}

// SaveSession replaces the stored session with the credential pair and the
// cached user profile. Session keys the new session does not carry are
// removed, so a refresh token from an earlier login never outlives it.
func (s *KeyValueTokenStore) SaveSession(ctx context.Context, creds Credentials, user *User) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	if !creds.HasAccessToken() {
		return fmt.Errorf("core: access token is required")
	}
	values := map[string]string{
		StorageKeyAccessToken: strings.TrimSpace(creds.AccessToken),
	}
	var stale []string
	if creds.HasRefreshToken() {
		values[StorageKeyRefreshToken] = strings.TrimSpace(creds.RefreshToken)
	} else {
		stale = append(stale, StorageKeyRefreshToken)
	}
	if user != nil {
		payload, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("core: encode user data: %w", err)
		}
		values[StorageKeyUserData] = string(payload)
	} else {
		stale = append(stale, StorageKeyUserData)
	}
	if err := s.kv.MultiSet(ctx, values); err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}
	return s.kv.MultiRemove(ctx, stale...)
}

func (s *KeyValueTokenStore) SaveUser(ctx context.Context, user User) error {
	if s == nil || s.kv == nil {
		return fmt.Errorf("core: token store is not configured")
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("core: encode user data: %w", err)
	}
	return s.kv.Set(ctx, StorageKeyUserData, string(payload))
}

// User returns the cached profile. found is false when nothing is cached.
func (s *KeyValueTokenStore) User(ctx context.Context) (user User, found bool, err error) {
	if s == nil || s.kv == nil {
		return User{}, false, fmt.Errorf("core: token store is not configured")
	}
	raw, ok, err := s.kv.Get(ctx, StorageKeyUserData)
	if err != nil || !ok || strings.TrimSpace(raw) == "" {
		return User{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return User{}, false, fmt.Errorf("core: decode user data: %w", err)
	}
	return user, true, nil
}
