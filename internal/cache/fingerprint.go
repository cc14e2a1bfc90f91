package cache

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/a11yscan/a11yscan/internal/model"
)

// Fingerprint derives the cache key for a page analysis. The same URL
// analyzed under the same options must always map to the same key, so
// the options are canonicalized into a fixed field order before
// hashing.
func Fingerprint(url string, opts model.AnalysisOptions) string {
	canonical := fmt.Sprintf("%s\x00%s\x00%t\x00%t",
		url, opts.Standard, opts.IncludeWarnings, opts.CaptureScreenshots)
	sum := blake2b.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
