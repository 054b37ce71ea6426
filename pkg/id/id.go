// Package id generates time-sortable identifiers for orchestration runs and
// for the simulated venue's quotes, contracts and transactions.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu   sync.Mutex
	mono io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// Monotonic keeps ids minted in the same millisecond increasing.
	mono = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a ULID string.
func New() string {
	mu.Lock()
	defer mu.Unlock()

	u, err := ulid.New(ulid.Timestamp(time.Now().UTC()), mono)
	if err != nil {
		// monotonic entropy overflow within one millisecond
		panic(err)
	}
	return u.String()
}

// Prefixed returns prefix + "-" + a ULID, e.g. "Q-01HV...".
func Prefixed(prefix string) string {
	return strings.ToUpper(prefix) + "-" + New()
}
