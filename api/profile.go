package api

import (
	"context"
	"strings"

	"github.com/iscanabdulhalik/go-esim/core"
)

type ProfileService struct {
	gateway  Gateway
	sessions SessionStore
	logger   core.Logger
}

type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
}

func (u ProfileUpdate) empty() bool {
	return strings.TrimSpace(u.FirstName) == "" &&
		strings.TrimSpace(u.LastName) == "" &&
		strings.TrimSpace(u.Phone) == "" &&
		strings.TrimSpace(u.Country) == ""
}

// Get fetches the profile and refreshes the cached copy.
func (s *ProfileService) Get(ctx context.Context) core.Result[core.User] {
	result := core.DecodeResult[core.User](s.gateway.Get(ctx, core.EndpointProfile, nil))
	s.cache(ctx, result)
	return result
}

func (s *ProfileService) Update(ctx context.Context, update ProfileUpdate) core.Result[core.User] {
	if update.empty() {
		return badInputResult[core.User]("profile update has no fields")
	}
	result := core.DecodeResult[core.User](s.gateway.Put(ctx, core.EndpointProfile, update))
	s.cache(ctx, result)
	return result
}

func (s *ProfileService) Notifications(ctx context.Context) core.Result[[]core.Notification] {
	return core.DecodeResult[[]core.Notification](s.gateway.Get(ctx, core.EndpointNotifications, nil))
}

func (s *ProfileService) MarkNotificationRead(ctx context.Context, id string) core.Envelope {
	if strings.TrimSpace(id) == "" {
		return badInput("notification id is required")
	}
	return s.gateway.Patch(ctx, core.NotificationReadPath(id), nil)
}

func (s *ProfileService) cache(ctx context.Context, result core.Result[core.User]) {
	if !result.OK() || strings.TrimSpace(result.Value.ID) == "" || s.sessions == nil {
		return
	}
	if err := s.sessions.SaveUser(ctx, result.Value); err != nil {
		core.Log(ctx, s.logger, core.LevelWarn, "cache user profile failed", map[string]any{"error": err.Error()})
	}
}
