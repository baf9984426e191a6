package steam

import (
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/gamescout/gamescout-backend/internal/pkg/errors"
)

var storeURLPattern = regexp.MustCompile(`/app/(\d+)(?:/|$)`)

// ParseAppID accepts either a bare numeric identifier or a store URL
// ("https://store.steampowered.com/app/12345/Some_Game/") and returns the
// numeric app id.
func ParseAppID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, apperrors.ErrInvalidArgument
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if id <= 0 {
			return 0, apperrors.ErrInvalidArgument
		}
		return id, nil
	}

	if m := storeURLPattern.FindStringSubmatch(s); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || id <= 0 {
			return 0, apperrors.ErrInvalidArgument
		}
		return id, nil
	}

	return 0, apperrors.ErrInvalidArgument
}
