package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

const orderNumberPrefix = "TYR"

// suffix alphabet avoids 0/O and 1/I confusion on printed invoices
const suffixAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// NewOrderNumber builds a display order number such as TYR-20260829143015-7KQ2M.
// The random suffix keeps concurrent checkouts within the same second from
// colliding; the unique index on order_number catches the rest and the
// checkout loop retries with a fresh number.
func NewOrderNumber() (string, error) {
	suffix, err := randomSuffix(5)
	if err != nil {
		return "", fmt.Errorf("order number suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", orderNumberPrefix, time.Now().UTC().Format("20060102150405"), suffix), nil
}

func randomSuffix(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = suffixAlphabet[int(b)%len(suffixAlphabet)]
	}
	return string(buf), nil
}
