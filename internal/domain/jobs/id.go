package jobs

import (
	"strings"

	"github.com/google/uuid"
)

const idPrefix = "analysis_"

// NewID returns a fresh caller-facing analysis ID such as analysis_1a2b3c4d5e6f.
func NewID() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return idPrefix + hex[:12]
}
