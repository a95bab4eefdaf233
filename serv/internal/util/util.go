package util

import (
	"strings"

	"github.com/spf13/viper"
)

// SetKeyValue sets a config value from an environment variable such as
// NL_MONGO_URL. The prefix is dropped and the rest lower cased. When the
// name matches no known key as is, each underscore in turn is tried as a
// nesting separator, so mongo_url finds mongo.url and rate_limiter_rate
// finds rate_limiter.rate.
func SetKeyValue(vi *viper.Viper, key string, value interface{}) bool {
	_, k, ok := strings.Cut(key, "_")
	if !ok || k == "" {
		return false
	}
	k = strings.ToLower(k)

	if vi.IsSet(k) {
		vi.Set(k, value)
		return true
	}

	for i := 0; i < len(k); i++ {
		if k[i] != '_' {
			continue
		}
		if nk := k[:i] + "." + k[i+1:]; vi.IsSet(nk) {
			vi.Set(nk, value)
			return true
		}
	}

	vi.Set(k, value)
	return true
}
