package core

import (
	"net/url"
	"strings"
)

const (
	EndpointAuthLogin          = "/auth/login"
	EndpointAuthRegister       = "/auth/register"
	EndpointAuthRefresh        = "/auth/refresh"
	EndpointAuthLogout         = "/auth/logout"
	EndpointAuthForgotPassword = "/auth/forgot-password"
	EndpointAuthResetPassword  = "/auth/reset-password"
	EndpointAuthChangePassword = "/auth/change-password"

	EndpointCountries     = "/countries"
	EndpointPackages      = "/packages"
	EndpointOrders        = "/orders"
	EndpointESIMs         = "/esims"
	EndpointProfile       = "/profile"
	EndpointNotifications = "/notifications"
)

func PackagePath(id string) string {
	return EndpointPackages + "/" + escapeSegment(id)
}

func OrderPath(id string) string {
	return EndpointOrders + "/" + escapeSegment(id)
}

func ESIMPath(iccid string) string {
	return EndpointESIMs + "/" + escapeSegment(iccid)
}

func ESIMUsagePath(iccid string) string {
	return ESIMPath(iccid) + "/usage"
}

func ESIMQRPath(iccid string) string {
	return ESIMPath(iccid) + "/qr"
}

func NotificationReadPath(id string) string {
	return EndpointNotifications + "/" + escapeSegment(id) + "/read"
}

func escapeSegment(segment string) string {
	return url.PathEscape(strings.TrimSpace(segment))
}
