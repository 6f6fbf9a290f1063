package ids

import (
	"errors"
	"fmt"
	mathrand "math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	EmployeePrefix = "EMP"
	EmployeeWidth  = 6

	FingerprintDocWidth = 5
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// ErrMalformed is returned by Parse when an identifier does not carry the expected prefix and digits.
var ErrMalformed = errors.New("ids: malformed identifier")

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Format zero-pads seq to width digits and prepends prefix.
// Sequences wider than width are kept whole.
func Format(prefix string, seq int64, width int) string {
	if width < 0 {
		width = 0
	}
	return fmt.Sprintf("%s%0*d", prefix, width, seq)
}

// EmployeeID formats an employee identifier, e.g. EMP000123.
func EmployeeID(seq int64) string {
	return Format(EmployeePrefix, seq, EmployeeWidth)
}

// FingerprintDocPrefix returns the year-scoped document number prefix, e.g. "FP-2025-".
func FingerprintDocPrefix(year int) string {
	return "FP-" + strconv.Itoa(year) + "-"
}

// FingerprintDocNo formats a fingerprint enrollment document number, e.g. FP-2025-00007.
func FingerprintDocNo(year int, seq int64) string {
	return Format(FingerprintDocPrefix(year), seq, FingerprintDocWidth)
}

// Parse recovers the sequence number from an identifier produced by Format with the same prefix.
func Parse(prefix, id string) (int64, error) {
	if !strings.HasPrefix(id, prefix) {
		return 0, fmt.Errorf("%w: %q lacks prefix %q", ErrMalformed, id, prefix)
	}
	digits := id[len(prefix):]
	if digits == "" {
		return 0, fmt.Errorf("%w: %q has no sequence", ErrMalformed, id)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrMalformed, id)
		}
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return seq, nil
}
