package workflow

import (
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/provadm-api/pkg/errors"
)

// DefaultMinRejectReason is the minimum length of a rejection reason.
const DefaultMinRejectReason = 5

// RequireReason guards rejections: the reason must be present and at
// least min characters after trimming.
func RequireReason(min int) GuardFunc {
	if min <= 0 {
		min = DefaultMinRejectReason
	}
	return func(in Input) error {
		reason := strings.TrimSpace(in.Reason)
		if len([]rune(reason)) < min {
			return appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("rejection reason must be at least %d characters", min))
		}
		return nil
	}
}
