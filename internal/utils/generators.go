package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random UUID string for entity primary keys.
func NewID() string {
	return uuid.New().String()
}

// GenerateQRHash derives an unguessable badge token for a subject. The token
// is what gets printed into the QR code; uniqueness across participants and
// volunteers is backed by the unique column on each table.
func GenerateQRHash(subjectID, seed string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s-%s-%d", subjectID, seed, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:])
}
