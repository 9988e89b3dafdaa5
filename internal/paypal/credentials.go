package paypal

import (
	"encoding/base64"
	"log/slog"
	"strings"
)

const (
	SandboxBaseURL    = "https://api-m.sandbox.paypal.com"
	ProductionBaseURL = "https://api-m.paypal.com"
)

// Credentials are the REST app credentials of the merchant. They are loaded
// once at startup and never leave the server.
type Credentials struct {
	ClientID     string
	ClientSecret string
	MerchantID   string
}

// Validate returns a *ConfigError naming the first missing field.
func (c Credentials) Validate() error {
	switch {
	case strings.TrimSpace(c.ClientID) == "":
		return &ConfigError{Field: "client_id"}
	case strings.TrimSpace(c.ClientSecret) == "":
		return &ConfigError{Field: "client_secret"}
	case strings.TrimSpace(c.MerchantID) == "":
		return &ConfigError{Field: "merchant_id"}
	}
	return nil
}

func (c Credentials) basicAuth() string {
	return base64.StdEncoding.EncodeToString([]byte(c.ClientID + ":" + c.ClientSecret))
}

// LogValue masks the secret so credentials can be logged at startup.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("client_id", c.ClientID),
		slog.String("merchant_id", c.MerchantID),
		slog.String("client_secret", maskSecret(c.ClientSecret)),
	)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "********"
	}
	return s[:6] + "********"
}
