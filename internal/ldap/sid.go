package ldap

import (
	"encoding/binary"
	"fmt"
)

// decodeSID converts a binary SID (MS-DTYP 2.4.2.2) into its canonical
// S-R-I-S... string form. There is no library in the retrieval pack that
// does this decoding, so it is implemented directly against the published
// byte layout rather than pulled in as a dependency.
func decodeSID(b []byte) (string, error) {
	if len(b) < 8 {
		return "", fmt.Errorf("sid: buffer too short: %d bytes", len(b))
	}

	revision := b[0]
	subAuthorityCount := int(b[1])
	identifierAuthority := binary.BigEndian.Uint64(append([]byte{0, 0}, b[2:8]...))

	want := 8 + subAuthorityCount*4
	if len(b) < want {
		return "", fmt.Errorf("sid: buffer too short for %d sub-authorities", subAuthorityCount)
	}

	sid := fmt.Sprintf("S-%d-%d", revision, identifierAuthority)
	for i := 0; i < subAuthorityCount; i++ {
		offset := 8 + i*4
		subAuthority := binary.LittleEndian.Uint32(b[offset : offset+4])
		sid += fmt.Sprintf("-%d", subAuthority)
	}
	return sid, nil
}
