// Package idgen allocates room ids, display names, and presence colors.
package idgen

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"sync/atomic"
)

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const roomIDLength = 6

// userNames is the fixed pool handed out, in order, to joiners who did
// not supply their own display name.
var userNames = []string{
	"Alex", "Blake", "Casey", "Drew", "Emery", "Finley",
	"Gray", "Harper", "Indigo", "Jules", "Kai", "Logan",
}

// colorPalette is the fixed 12-color palette allocated round-robin.
var colorPalette = []string{
	"#E57373", "#F06292", "#BA68C8", "#9575CD",
	"#7986CB", "#64B5F6", "#4FC3F7", "#4DD0E1",
	"#4DB6AC", "#81C784", "#FFD54F", "#FFB74D",
}

// colorCounter is process-global and monotonically increasing: colors are
// not uniqued per room, so two rooms (or two members of the same room
// after enough turnover) can end up with the same color.
var colorCounter uint64

// RoomID returns a 6-character uppercase alphanumeric id.
func RoomID() (string, error) {
	buf := make([]byte, roomIDLength)
	max := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = roomIDAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// UserName returns the pool name at index existingCount (the room's
// current member count), falling back to "User N" with N = existingCount+1
// past the end of the pool. Names already in use in the room are not
// checked, so a name can repeat once members have left.
func UserName(existingCount int) string {
	if existingCount >= 0 && existingCount < len(userNames) {
		return userNames[existingCount]
	}
	return "User " + strconv.Itoa(existingCount+1)
}

// NextColor returns the next color in the palette, round-robin, from the
// process-global counter.
func NextColor() string {
	idx := atomic.AddUint64(&colorCounter, 1) - 1
	return colorPalette[int(idx)%len(colorPalette)]
}
