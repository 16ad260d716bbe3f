package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a fresh ULID string. Verification-code rows use these as
// partition keys; the creation-time ordering makes them cheap to reason
// about when inspecting the table.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
