package collect

import (
	"crypto/rand"
	"hash/crc32"
)

// zipCryptoEncrypt implements the traditional PKWARE ZipCrypto stream
// cipher (APPNOTE.TXT §6.1.3). It is weak by modern standards — this
// exists only because that's the only password scheme the ZIP format's
// ubiquitous readers (including BloodHound's own consumers) understand
// without an AE-2 extension.
func zipCryptoEncrypt(data []byte, password string, crc uint32) []byte {
	key0, key1, key2 := initKeys(password)

	header := make([]byte, 12)
	if _, err := rand.Read(header); err != nil {
		// crypto/rand failing means the OS entropy source is broken;
		// a fixed 0..11 byte pattern still produces a structurally valid
		// (if weak) header rather than aborting the bundle.
		for i := range header {
			header[i] = byte(i)
		}
	}
	header[11] = byte(crc >> 24)

	out := make([]byte, 12+len(data))
	for i, b := range header {
		out[i] = b ^ decryptByte(key2)
		key0, key1, key2 = updateKeys(key0, key1, key2, b)
	}
	for i, b := range data {
		out[12+i] = b ^ decryptByte(key2)
		key0, key1, key2 = updateKeys(key0, key1, key2, b)
	}
	return out
}

func initKeys(password string) (key0, key1, key2 uint32) {
	key0, key1, key2 = 0x12345678, 0x23456789, 0x34567890
	for i := 0; i < len(password); i++ {
		key0, key1, key2 = updateKeys(key0, key1, key2, password[i])
	}
	return key0, key1, key2
}

func updateKeys(key0, key1, key2 uint32, c byte) (uint32, uint32, uint32) {
	key0 = crc32.Update(key0, crc32.IEEETable, []byte{c})
	key1 = (key1+(key0&0xff))*134775813 + 1
	key2 = crc32.Update(key2, crc32.IEEETable, []byte{byte(key1 >> 24)})
	return key0, key1, key2
}

func decryptByte(key2 uint32) byte {
	temp := uint16(key2|2) & 0xffff
	return byte((uint32(temp) * uint32(temp^1)) >> 8)
}
