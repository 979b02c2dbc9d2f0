package config

import "github.com/tailscale/hujson"

// standardizeJSONC strips comments and trailing commas so the result is
// valid for encoding/json.
func standardizeJSONC(data []byte) ([]byte, error) {
	return hujson.Standardize(data)
}
