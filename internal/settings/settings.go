package settings

import (
	"log/slog"
	"strings"
)

// Mode selects how the transport reaches the upstream API
type Mode string

const (
	ModeRelay  Mode = "relay"
	ModeDirect Mode = "direct"

	// legacyModeProxy is what older saved settings call the relay mode
	legacyModeProxy = "proxy"
)

// IDPlaceholder is substituted with the escaped product id in ProductByIDEndpoint
const IDPlaceholder = "{id}"

// Persisted keys
const (
	KeyMode                = "mode"
	KeyBaseURL             = "baseUrl"
	KeyRelayURL            = "relayUrl"
	KeyTokenHeader         = "tokenHeader"
	KeyTokenPrefix         = "tokenPrefix"
	KeyToken               = "token"
	KeyProductsEndpoint    = "productsEndpoint"
	KeyProductByIDEndpoint = "productByIdEndpoint"
	KeySearchParam         = "searchParam"
)

// Settings holds the connection settings used by the transport
type Settings struct {
	Mode                Mode   `json:"mode"`
	BaseURL             string `json:"baseUrl"`
	RelayURL            string `json:"relayUrl"`
	TokenHeader         string `json:"tokenHeader"`
	TokenPrefix         string `json:"tokenPrefix"`
	Token               string `json:"token"`
	ProductsEndpoint    string `json:"productsEndpoint"`
	ProductByIDEndpoint string `json:"productByIdEndpoint"`
	SearchParam         string `json:"searchParam"`
}

// Defaults returns the settings used when nothing has been persisted
func Defaults() Settings {
	return Settings{
		Mode:                ModeRelay,
		BaseURL:             "",
		RelayURL:            "http://localhost:3000",
		TokenHeader:         "Authorization",
		TokenPrefix:         "Bearer ",
		Token:               "",
		ProductsEndpoint:    "/produtos",
		ProductByIDEndpoint: "/produtos/{id}",
		SearchParam:         "q",
	}
}

// ParseMode maps a persisted mode value to a Mode
func ParseMode(value string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(ModeRelay), legacyModeProxy:
		return ModeRelay, true
	case string(ModeDirect):
		return ModeDirect, true
	default:
		return "", false
	}
}

// FromMap merges a persisted record over the defaults.
// A present key wins even when empty.
func FromMap(values map[string]string) Settings {
	s := Defaults()

	if v, ok := values[KeyMode]; ok {
		if mode, valid := ParseMode(v); valid {
			s.Mode = mode
		} else {
			slog.Warn("Unknown connection mode in saved settings, using default",
				"mode", v, "default", s.Mode)
		}
	}

	assign := func(key string, field *string) {
		if v, ok := values[key]; ok {
			*field = v
		}
	}
	assign(KeyBaseURL, &s.BaseURL)
	assign(KeyRelayURL, &s.RelayURL)
	assign(KeyTokenHeader, &s.TokenHeader)
	assign(KeyTokenPrefix, &s.TokenPrefix)
	assign(KeyToken, &s.Token)
	assign(KeyProductsEndpoint, &s.ProductsEndpoint)
	assign(KeyProductByIDEndpoint, &s.ProductByIDEndpoint)
	assign(KeySearchParam, &s.SearchParam)

	return s
}

// ToMap returns the persisted form of the settings
func (s Settings) ToMap() map[string]string {
	return map[string]string{
		KeyMode:                string(s.Mode),
		KeyBaseURL:             s.BaseURL,
		KeyRelayURL:            s.RelayURL,
		KeyTokenHeader:         s.TokenHeader,
		KeyTokenPrefix:         s.TokenPrefix,
		KeyToken:               s.Token,
		KeyProductsEndpoint:    s.ProductsEndpoint,
		KeyProductByIDEndpoint: s.ProductByIDEndpoint,
		KeySearchParam:         s.SearchParam,
	}
}

// Normalize applies the settings form rules: values are trimmed (the token
// prefix is kept verbatim) and blank required values fall back to defaults.
func (s Settings) Normalize() Settings {
	d := Defaults()

	if mode, ok := ParseMode(string(s.Mode)); ok {
		s.Mode = mode
	} else {
		s.Mode = d.Mode
	}

	s.BaseURL = strings.TrimSpace(s.BaseURL)
	s.RelayURL = strings.TrimSpace(s.RelayURL)
	s.Token = strings.TrimSpace(s.Token)

	s.TokenHeader = orDefault(s.TokenHeader, d.TokenHeader)
	s.ProductsEndpoint = orDefault(s.ProductsEndpoint, d.ProductsEndpoint)
	s.ProductByIDEndpoint = orDefault(s.ProductByIDEndpoint, d.ProductByIDEndpoint)
	s.SearchParam = orDefault(s.SearchParam, d.SearchParam)

	return s
}

// Target returns the base URL that is meaningful for the active mode
func (s Settings) Target() string {
	if s.Mode == ModeDirect {
		return s.BaseURL
	}
	return s.RelayURL
}

func orDefault(value, defaultValue string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return defaultValue
}
