package providers

import "strings"

// AuthStyle selects how the API key is attached to outgoing requests. The
// same vendor is resold through several gateways, each with its own
// authentication scheme, so the style follows from the configured base URL.
type AuthStyle string

const (
	// AuthRapidAPI uses the X-RapidAPI-Key / X-RapidAPI-Host header pair.
	AuthRapidAPI AuthStyle = "rapidapi"
	// AuthMarketHeader uses a single x-magicapi-key header (api.market plans).
	AuthMarketHeader AuthStyle = "market_header"
	// AuthQueryParam appends api-key as a query parameter (direct plans).
	AuthQueryParam AuthStyle = "query_param"
)

// DetectAuthStyle derives the authentication style from a base URL.
func DetectAuthStyle(baseURL string) AuthStyle {
	u := strings.ToLower(baseURL)
	switch {
	case strings.Contains(u, "rapidapi.com"):
		return AuthRapidAPI
	case strings.Contains(u, "api.market") || strings.Contains(u, "magicapi"):
		return AuthMarketHeader
	default:
		return AuthQueryParam
	}
}
