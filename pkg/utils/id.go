package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a run ID with a timestamp prefix and a short
// random suffix, e.g. "run-20250104-143022-1a2b3c4d"
func GenerateRunID() string {
	timestamp := time.Now().Format("20060102-150405")
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("run-%s-%s", timestamp, suffix)
}

// GenerateStudyName generates a study name with a timestamp, matching the
// "study_YYYYMMDD_HHMMSS" convention used when no name is supplied
func GenerateStudyName() string {
	return fmt.Sprintf("study_%s", time.Now().Format("20060102_150405"))
}
