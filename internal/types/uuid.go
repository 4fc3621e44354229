package types

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	UUID_PREFIX_PATIENT          = "pat"
	UUID_PREFIX_PAYMENT_PLAN     = "plan"
	UUID_PREFIX_PAYMENT_PERIOD   = "perd"
	UUID_PREFIX_PAYMENT_PRICE    = "price"
	UUID_PREFIX_PROMO_CODE       = "promo"
	UUID_PREFIX_EMPLOYER_PRODUCT = "empl"
	UUID_PREFIX_SUBSCRIPTION     = "subs"
	UUID_PREFIX_INTEGRATION      = "subi"
	UUID_PREFIX_PAYMENT_ISSUE    = "payi"
	UUID_PREFIX_RENEWAL_STRATEGY = "rens"
	UUID_PREFIX_ENTITLEMENT      = "enti"
	UUID_PREFIX_WEBHOOK_EVENT    = "whev"
)

// GenerateUUID returns a lowercase ULID. ULIDs sort lexicographically by
// creation time, which the stores rely on for "most recent" ordering.
func GenerateUUID() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader)
	return strings.ToLower(id.String())
}

// GenerateUUIDWithPrefix returns a prefixed ULID, e.g. "subs_01h2xce...".
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}
