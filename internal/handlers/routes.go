package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the proxy and quota status routes.
func RegisterRoutes(api huma.API, proxy *ProxyHandler, quota *QuotaHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "latest-rates",
		Method:      http.MethodGet,
		Path:        "/rates/latest",
		Summary:     "Latest rates",
		Description: "Proxies the latest rates snapshot from the upstream, served from cache when fresh.",
		Tags:        []string{"Rates"},
	}, proxy.LatestRates)

	huma.Register(api, huma.Operation{
		OperationID: "symbol-history",
		Method:      http.MethodGet,
		Path:        "/symbols/{id}/history",
		Summary:     "Symbol history",
		Description: "Proxies one page of per-symbol history, cached per id/limit/page combination.",
		Tags:        []string{"Rates"},
	}, proxy.SymbolHistory)

	huma.Register(api, huma.Operation{
		OperationID: "quota-status",
		Method:      http.MethodGet,
		Path:        "/quota",
		Summary:     "Quota status",
		Description: "Reports current quota usage without consuming any.",
		Tags:        []string{"Quota"},
	}, quota.Status)
}
