// internal/ws/token.go
package ws

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const (
	sessionTokenLen      = 32
	sessionTokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// newSessionToken mints a connection token: 32 random alphanumeric
// characters plus a wall-clock suffix so tokens stay unique even in
// the unlikely event of a random collision.
func newSessionToken() string {
	b := make([]byte, sessionTokenLen)
	max := big.NewInt(int64(len(sessionTokenAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = sessionTokenAlphabet[n.Int64()]
	}
	return string(b) + strconv.FormatInt(time.Now().UnixMilli(), 10)
}
