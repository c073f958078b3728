// Package lfs implements the large-file clean filter used when files are
// staged into a git working copy: matching paths are stored in the
// repository's object store and replaced by a pointer file.
package lfs

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// PointerVersion is the version line every pointer file starts with.
const PointerVersion = "https://git-lfs.github.com/spec/v1"

// Pointer references a stored object by sha256 and size.
type Pointer struct {
	OID  string
	Size int64
}

// Encode renders the pointer file content.
func (p Pointer) Encode() []byte {
	return fmt.Appendf(nil, "version %s\noid sha256:%s\nsize %d\n", PointerVersion, p.OID, p.Size)
}

// DecodePointer parses pointer file content. ok is false when data is not a
// pointer.
func DecodePointer(data []byte) (p Pointer, ok bool) {
	if len(data) > 1024 {
		return Pointer{}, false
	}

	var version bool
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), " ")
		if !found {
			return Pointer{}, false
		}
		switch key {
		case "version":
			version = value == PointerVersion
		case "oid":
			oid, hasPrefix := strings.CutPrefix(value, "sha256:")
			if !hasPrefix || len(oid) != 64 {
				return Pointer{}, false
			}
			p.OID = oid
		case "size":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return Pointer{}, false
			}
			p.Size = n
		}
	}
	return p, version && p.OID != ""
}
