package test

import (
	"math/rand"
	"sync"
	"time"
)

const hexDigits = "0123456789abcdef"

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomAddress returns a pseudo-random lowercase EVM address.
func RandomAddress() string {
	buf := make([]byte, 40)
	for i := range buf {
		buf[i] = hexDigits[randomIntn(len(hexDigits))]
	}
	return "0x" + string(buf)
}

func randomIntn(n int) int {
	rngMu.Lock()
	defer rngMu.Unlock()
	return rng.Intn(n)
}
