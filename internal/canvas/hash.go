package canvas

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ImageHash returns the content address of a rendered canvas image.
// The hashed form is "<size>-<key>" so equal keys of different sizes
// can never collide.
func ImageHash(size int, k Key) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d-%s", size, k)))
	return hex.EncodeToString(sum[:])
}
