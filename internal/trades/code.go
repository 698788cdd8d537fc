package trades

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const codePrefix = "STC"

// Alphabet without 0/O/1/I so codes survive being read aloud.
const codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const codeLength = 6

// NewTradeCode returns a display token like "STC-7K2MQX". It correlates
// an in-person exchange with the order and is not an access credential;
// a fresh one is issued every time escrow is funded.
func NewTradeCode() (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate trade code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%s", codePrefix, buf), nil
}
