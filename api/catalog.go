package api

import (
	"context"
	"strings"

	"github.com/iscanabdulhalik/go-esim/core"
)

type CatalogService struct {
	gateway Gateway
}

// PackageFilter narrows the package listing. Zero values are not sent.
type PackageFilter struct {
	CountryCode string
	Popular     bool
	Type        string
	Page        int
	Limit       int
}

func (f PackageFilter) query() map[string]string {
	query := map[string]string{}
	if code := strings.ToUpper(strings.TrimSpace(f.CountryCode)); code != "" {
		query["country"] = code
	}
	if f.Popular {
		query["popular"] = "true"
	}
	if kind := strings.TrimSpace(f.Type); kind != "" {
		query["type"] = kind
	}
	return pageQuery(query, f.Page, f.Limit)
}

func (s *CatalogService) Countries(ctx context.Context) core.Result[[]core.Country] {
	return core.DecodeResult[[]core.Country](s.gateway.Get(ctx, core.EndpointCountries, nil))
}

func (s *CatalogService) Packages(ctx context.Context, filter PackageFilter) core.Result[[]core.Package] {
	if filter.Page < 0 || filter.Limit < 0 {
		return badInputResult[[]core.Package]("page and limit must not be negative")
	}
	return core.DecodeResult[[]core.Package](s.gateway.Get(ctx, core.EndpointPackages, filter.query()))
}

func (s *CatalogService) Package(ctx context.Context, id string) core.Result[core.Package] {
	if strings.TrimSpace(id) == "" {
		return badInputResult[core.Package]("package id is required")
	}
	return core.DecodeResult[core.Package](s.gateway.Get(ctx, core.PackagePath(id), nil))
}
