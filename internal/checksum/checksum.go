/*
Copyright © 2025 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package checksum computes the content-addressable digest spec §3 calls
// Checksum: a digest over the exact bytes of a file at plan-generation
// time, used by the executor to refuse to modify a file whose current
// digest diverges.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
)

// Digest is a hex-encoded sha256 of file contents.
type Digest string

// OfBytes computes the Digest of raw content.
func OfBytes(content []byte) Digest {
	sum := sha256.Sum256(content)
	return Digest(hex.EncodeToString(sum[:]))
}

// OfFile reads nativePath and computes its Digest. A missing file
// produces the zero Digest and the underlying os error, which callers
// report as an error other than ChecksumMismatch (the executor reports
// NotFound).
func OfFile(nativePath string) (Digest, error) {
	content, err := os.ReadFile(nativePath)
	if err != nil {
		return "", err
	}
	return OfBytes(content), nil
}

// Map is a plan's checksum_map: logical path -> Digest sampled at
// plan-generation time.
type Map map[string]Digest
