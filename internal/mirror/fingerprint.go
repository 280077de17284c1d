package mirror

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// Fingerprint is the hex digest of a file's content. Two files mirror
// each other exactly when their fingerprints are equal.
type Fingerprint string

// FingerprintFile streams the file through MD5 and returns its digest.
// Content is read in bounded chunks, so peak memory does not depend on
// file size. MD5 is used for change detection, not security.
func FingerprintFile(path string) (Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	digest := md5.New()
	if _, err := io.Copy(digest, file); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	return Fingerprint(hex.EncodeToString(digest.Sum(nil))), nil
}
