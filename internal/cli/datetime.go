package cli

import (
	"fmt"
	"strings"
	"time"

	"jotline/internal/model"
	"jotline/internal/taskmeta"
)

// parseDateArg accepts YYYY-MM-DD or a keyword such as "today", "tomorrow",
// "fri" or "next week".
func parseDateArg(s string, now time.Time) (model.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.DateOf(now), nil
	}
	if d, err := model.ParseDate(s); err == nil {
		return d, nil
	}
	if d, ok := taskmeta.ResolveDate(s, now); ok {
		return d, nil
	}
	return "", fmt.Errorf("invalid date %q (expected YYYY-MM-DD or a keyword like today, tomorrow, fri)", s)
}

// parseContainerArg accepts "folder:<id>", "date:<date>" or any date
// parseDateArg understands. Empty means today.
func parseContainerArg(s string, now time.Time) (model.ContainerKey, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, string(model.ContainerFolder)+":") {
		return model.ParseContainerKey(s)
	}
	s = strings.TrimPrefix(s, string(model.ContainerDate)+":")
	d, err := parseDateArg(s, now)
	if err != nil {
		return model.ContainerKey{}, err
	}
	return model.DateContainer(d), nil
}
