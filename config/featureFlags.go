package config

import (
	"os"
	"strings"
)

// RpcProxyEnabled exposes POST /api/rpc/:function to browser sessions.
// The internal workflows keep using the RPC client either way.
//
// Set via env:
// - RPC_PROXY_ENABLED=false
func RpcProxyEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("RPC_PROXY_ENABLED")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// ExtraRpcFunctions extends the RPC allow-list without a redeploy.
//
// Set via env:
// - RPC_EXTRA_FUNCTIONS="equipment_search,repair_request_list"
//
// Names are case-sensitive, matching the backend function names.
func ExtraRpcFunctions() []string {
	return splitAndTrim(os.Getenv("RPC_EXTRA_FUNCTIONS"))
}
