package dispatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewJobID builds schedule-{scheduleID}-{epoch ms}-{6 random chars}.
func NewJobID(scheduleID int64, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("schedule-%d-%d-%s", scheduleID, now.UnixMilli(), suffix)
}
