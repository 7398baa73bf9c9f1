package models

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
)

// Fingerprint derives the 12-character hex pick id:
//
//	SHA1( sport | event_id | market | UPPER(side) | round(line,2) | player_id )[0:12]
//
// The fingerprint is the idempotency key for dedup and for matching persisted
// picks to grading results, so every component must be rendered identically on
// every code path. Line is rounded to two decimals before formatting.
func Fingerprint(sport Sport, eventID string, market Market, side string, line float64, playerID string) string {
	rounded := math.Round(line*100) / 100
	key := fmt.Sprintf("%s|%s|%s|%s|%.2f|%s",
		sport, eventID, market, strings.ToUpper(side), rounded, playerID)
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])[:12]
}
