package ingest

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// PhoneHash derives the stable per-lead surrogate key from the platform tag,
// the lead display name and the raw message timestamp. The sources expose no
// real phone number, so this 15-hex digest fills the phone column and keys
// the upsert. Not security-sensitive.
func PhoneHash(platform, leadName, messageAt string) string {
	sum := md5.Sum([]byte(platform + leadName + messageAt))
	return hex.EncodeToString(sum[:])[:15]
}

// TransactionID synthesises a per-write transaction id from the path prefix
// ("ingest" or "wa") and the lead's phone hash. The random fragment keeps
// concurrent writes for the same hash from colliding.
func TransactionID(prefix, phoneHash string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, phoneHash, uuid.NewString()[:8])
}
