package random

import (
	"crypto/rand"
	"encoding/binary"
	"github.com/myrjola/decisionverse/internal/errors"
	"math/big"
)

var allowedLetters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")

// Letters returns n letters drawn uniformly from crypto/rand.
func Letters(n uint) (string, error) {
	letters := make([]rune, n)
	for i := range letters {
		letterIndex, err := rand.Int(rand.Reader, big.NewInt(int64(len(allowedLetters))))
		if err != nil {
			return "", errors.Wrap(err, "draw letter index")
		}
		letters[i] = allowedLetters[letterIndex.Int64()]
	}
	return string(letters), nil
}

// Float64 returns a uniformly distributed number in [0, 1) drawn from crypto/rand.
func Float64() (float64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, errors.Wrap(err, "read random bytes")
	}
	// Keep 53 bits, the width of a float64 mantissa.
	return float64(binary.BigEndian.Uint64(b[:])>>11) / (1 << 53), nil
}
