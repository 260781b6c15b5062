package core

import (
	"math"
	"strconv"
	"time"
)

type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Country   string `json:"country,omitempty"`
}

// AuthSession is the payload returned by the login, register and refresh
// endpoints. Some backends name the access token "token", others
// "accessToken".
type AuthSession struct {
	Token        string `json:"token"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	User         *User  `json:"user,omitempty"`
}

func (s AuthSession) Credentials() Credentials {
	access := s.AccessToken
	if access == "" {
		access = s.Token
	}
	return Credentials{AccessToken: access, RefreshToken: s.RefreshToken}
}

type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag,omitempty"`
}

type Package struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Country        string  `json:"country"`
	CountryCode    string  `json:"countryCode"`
	CountryFlag    string  `json:"countryFlag,omitempty"`
	DataAmountMB   int     `json:"dataAmount"`
	DurationDays   int     `json:"duration"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	Coverage       string  `json:"coverage,omitempty"`
	Speed          string  `json:"speed,omitempty"`
	HotspotAllowed bool    `json:"hotspotAllowed"`
	SMSIncluded    bool    `json:"smsIncluded"`
	Provider       string  `json:"provider,omitempty"`
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID            string      `json:"id"`
	PackageID     string      `json:"packageId"`
	Status        OrderStatus `json:"status"`
	Amount        float64     `json:"amount"`
	Currency      string      `json:"currency"`
	PaymentMethod string      `json:"paymentMethod,omitempty"`
	ICCID         string      `json:"iccid,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

type ESIMStatus string

const (
	ESIMStatusActive   ESIMStatus = "active"
	ESIMStatusInactive ESIMStatus = "inactive"
	ESIMStatusExpired  ESIMStatus = "expired"
)

type ESIM struct {
	ICCID        string     `json:"iccid"`
	Country      string     `json:"country"`
	CountryFlag  string     `json:"countryFlag,omitempty"`
	PackageName  string     `json:"packageName"`
	Provider     string     `json:"provider,omitempty"`
	Status       ESIMStatus `json:"status"`
	DataLimitMB  int        `json:"dataLimit"`
	DataUsedMB   int        `json:"dataUsed"`
	ExpiryDate   time.Time  `json:"expiryDate"`
	PurchaseDate time.Time  `json:"purchaseDate"`
}

// UsagePercent returns used/limit as a percentage clamped to [0, 100].
func (e ESIM) UsagePercent() float64 {
	if e.DataLimitMB <= 0 {
		return 0
	}
	percent := float64(e.DataUsedMB) / float64(e.DataLimitMB) * 100
	return math.Max(0, math.Min(100, percent))
}

func (e ESIM) RemainingMB() int {
	remaining := e.DataLimitMB - e.DataUsedMB
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (e ESIM) Expired(now time.Time) bool {
	if e.Status == ESIMStatusExpired {
		return true
	}
	return !e.ExpiryDate.IsZero() && now.After(e.ExpiryDate)
}

type ESIMUsage struct {
	ICCID       string    `json:"iccid"`
	DataUsedMB  int       `json:"dataUsed"`
	DataLimitMB int       `json:"dataLimit"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// QRCode carries the activation payload rendered as a QR code by clients.
type QRCode struct {
	ICCID          string `json:"iccid"`
	ActivationCode string `json:"activationCode"`
	SMDPAddress    string `json:"smdpAddress,omitempty"`
	QRData         string `json:"qrCode,omitempty"`
}

// LPAString returns the LPA:1$<smdp>$<code> activation string when the
// SM-DP+ address is known, else the raw activation code.
func (q QRCode) LPAString() string {
	if q.QRData != "" {
		return q.QRData
	}
	if q.SMDPAddress == "" {
		return q.ActivationCode
	}
	return "LPA:1$" + q.SMDPAddress + "$" + q.ActivationCode
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// FormatDataAmount renders a megabyte amount the way the storefront shows
// it: "512 MB", "5 GB", "1.5 GB".
func FormatDataAmount(mb int) string {
	if mb < 1024 {
		return strconv.Itoa(mb) + " MB"
	}
	gb := float64(mb) / 1024
	return strconv.FormatFloat(math.Round(gb*10)/10, 'f', -1, 64) + " GB"
}
