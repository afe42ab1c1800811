package builders

import (
	"strings"

	"github.com/samber/lo"
)

// NormalizePlatforms turns the API's comma-separated architecture string
// into buildx platform names. Bare architectures get the linux/ namespace;
// already-namespaced entries pass through unchanged.
func NormalizePlatforms(arch string) []string {
	parts := lo.FilterMap(strings.Split(arch, ","), func(p string, _ int) (string, bool) {
		p = strings.TrimSpace(p)
		return p, p != ""
	})
	if len(parts) == 0 {
		return nil
	}
	return lo.Map(parts, func(p string, _ int) string {
		if strings.Contains(p, "/") {
			return p
		}
		return "linux/" + p
	})
}
