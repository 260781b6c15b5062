package api

import (
	"context"
	"strings"

	"github.com/iscanabdulhalik/go-esim/core"
)

type OrderService struct {
	gateway Gateway
}

type CreateOrderInput struct {
	PackageID     string `json:"packageId"`
	PaymentMethod string `json:"paymentMethod,omitempty"`
	Quantity      int    `json:"quantity,omitempty"`
}

type OrderFilter struct {
	Status core.OrderStatus
	Page   int
	Limit  int
}

func (s *OrderService) Create(ctx context.Context, input CreateOrderInput) core.Result[core.Order] {
	input.PackageID = strings.TrimSpace(input.PackageID)
	if input.PackageID == "" {
		return badInputResult[core.Order]("package id is required")
	}
	if input.Quantity < 0 {
		return badInputResult[core.Order]("quantity must not be negative")
	}
	return core.DecodeResult[core.Order](s.gateway.Post(ctx, core.EndpointOrders, input))
}

func (s *OrderService) List(ctx context.Context, filter OrderFilter) core.Result[[]core.Order] {
	if filter.Page < 0 || filter.Limit < 0 {
		return badInputResult[[]core.Order]("page and limit must not be negative")
	}
	query := map[string]string{}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		query["status"] = status
	}
	return core.DecodeResult[[]core.Order](s.gateway.Get(ctx, core.EndpointOrders, pageQuery(query, filter.Page, filter.Limit)))
}

func (s *OrderService) Get(ctx context.Context, id string) core.Result[core.Order] {
	if strings.TrimSpace(id) == "" {
		return badInputResult[core.Order]("order id is required")
	}
	return core.DecodeResult[core.Order](s.gateway.Get(ctx, core.OrderPath(id), nil))
}

func (s *OrderService) Cancel(ctx context.Context, id string) core.Envelope {
	if strings.TrimSpace(id) == "" {
		return badInput("order id is required")
	}
	return s.gateway.Delete(ctx, core.OrderPath(id))
}
