package room

import (
	"math/rand"
	"strings"
)

const codeLength = 6

// Ambiguous characters (0/O, 1/I) are excluded so codes survive being read
// aloud or typed from a projector.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateRoomCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(code)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
