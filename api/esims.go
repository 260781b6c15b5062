package api

import (
	"context"
	"strings"

	"github.com/iscanabdulhalik/go-esim/core"
)

type ESIMService struct {
	gateway Gateway
}

// ESIMUpdate is sent as a partial update; nil fields are left out.
type ESIMUpdate struct {
	Label  *string          `json:"label,omitempty"`
	Status *core.ESIMStatus `json:"status,omitempty"`
}

func (s *ESIMService) List(ctx context.Context, status core.ESIMStatus) core.Result[[]core.ESIM] {
	var query map[string]string
	if value := strings.TrimSpace(string(status)); value != "" {
		query = map[string]string{"status": value}
	}
	return core.DecodeResult[[]core.ESIM](s.gateway.Get(ctx, core.EndpointESIMs, query))
}

func (s *ESIMService) Get(ctx context.Context, iccid string) core.Result[core.ESIM] {
	if strings.TrimSpace(iccid) == "" {
		return badInputResult[core.ESIM]("iccid is required")
	}
	return core.DecodeResult[core.ESIM](s.gateway.Get(ctx, core.ESIMPath(iccid), nil))
}

func (s *ESIMService) Usage(ctx context.Context, iccid string) core.Result[core.ESIMUsage] {
	if strings.TrimSpace(iccid) == "" {
		return badInputResult[core.ESIMUsage]("iccid is required")
	}
	return core.DecodeResult[core.ESIMUsage](s.gateway.Get(ctx, core.ESIMUsagePath(iccid), nil))
}

func (s *ESIMService) QR(ctx context.Context, iccid string) core.Result[core.QRCode] {
	if strings.TrimSpace(iccid) == "" {
		return badInputResult[core.QRCode]("iccid is required")
	}
	return core.DecodeResult[core.QRCode](s.gateway.Get(ctx, core.ESIMQRPath(iccid), nil))
}

func (s *ESIMService) Update(ctx context.Context, iccid string, patch ESIMUpdate) core.Result[core.ESIM] {
	if strings.TrimSpace(iccid) == "" {
		return badInputResult[core.ESIM]("iccid is required")
	}
	if patch.Label == nil && patch.Status == nil {
		return badInputResult[core.ESIM]("update has no fields")
	}
	return core.DecodeResult[core.ESIM](s.gateway.Patch(ctx, core.ESIMPath(iccid), patch))
}

func (s *ESIMService) Activate(ctx context.Context, iccid string) core.Result[core.ESIM] {
	status := core.ESIMStatusActive
	return s.Update(ctx, iccid, ESIMUpdate{Status: &status})
}

func (s *ESIMService) Deactivate(ctx context.Context, iccid string) core.Result[core.ESIM] {
	status := core.ESIMStatusInactive
	return s.Update(ctx, iccid, ESIMUpdate{Status: &status})
}
