package chunk

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// ID derives the chunk id from the source file id, the position of the
// chunk inside that file and the first 8 hex characters of the MD5 of the
// chunk text. Re-chunking unchanged content reproduces the same id.
func ID(fileID string, position int, content string) string {
	sum := md5.Sum([]byte(content))
	return fmt.Sprintf("%s_%d_%s", fileID, position, hex.EncodeToString(sum[:])[:8])
}
