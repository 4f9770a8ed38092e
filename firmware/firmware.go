// Package firmware implements the HW-OSTC3 service-mode firmware image
// format, grounded on hw_ostc3.c's hw_ostc3_firmware_readfile,
// hw_ostc3_firmware_checksum, and hw_ostc3_firmware_upgrade: an
// Intel-HEX-style ASCII container whose payload is AES-128 encrypted with
// a cipher-feedback construction distinct from a counter-mode keystream
// (each 16-byte block's keystream is the AES encryption of the *previous
// ciphertext* block, not an incrementing counter), so it is implemented
// directly against crypto/aes rather than reusing byteutil's
// counter-based AESKeystream/XORKeystream helpers.
package firmware

import (
	"bufio"
	"crypto/aes"
	"encoding/hex"
	"fmt"
	"io"

	dc "github.com/shaunagostinho/divecomputer"
)

const (
	// Size is the uncompressed firmware image size (120KB), SZ_FIRMWARE.
	Size = 0x01E000
	// BlockSize is the device's erase/write granularity, SZ_FIRMWARE_BLOCK.
	BlockSize = 0x1000
	// Area is the flash offset the firmware image is written to.
	Area = 0x3E0000

	lineSize = 16
)

// Key is the shared AES-128 key used by the OSTC3 and OSTC Sport
// firmware format (the Frog uses the same construction with a different
// key, per the original's comment).
var Key = [16]byte{
	0xF1, 0xE9, 0xB0, 0x30,
	0x45, 0x6F, 0xBE, 0x55,
	0xFF, 0xE7, 0xF8, 0x31,
	0x13, 0x6C, 0xF2, 0xFE,
}

// Image is a decoded firmware payload ready to be erased/written/verified
// against a device's flash.
type Image struct {
	Data     [Size]byte
	Checksum uint32
}

// readLine parses one ":AAAAAA" + hex-payload line of the container
// format hw_ostc3_firmware_readline expects, returning the address field
// and the decoded payload bytes.
func readLine(r *bufio.Reader, size int) (uint32, []byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, nil, fmt.Errorf("read start code: %w", err)
		}
		if b == ':' {
			break
		}
		if b != '\n' && b != '\r' {
			return 0, nil, fmt.Errorf("unexpected character 0x%02x", b)
		}
	}

	payload := make([]byte, 6+size*2)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read line data: %w", err)
	}

	addrBytes, err := hex.DecodeString(string(payload[:6]))
	if err != nil {
		return 0, nil, fmt.Errorf("invalid address hex: %w", err)
	}
	addr := uint32(addrBytes[0])<<16 | uint32(addrBytes[1])<<8 | uint32(addrBytes[2])

	data, err := hex.DecodeString(string(payload[6:]))
	if err != nil {
		return 0, nil, fmt.Errorf("invalid payload hex: %w", err)
	}

	return addr, data, nil
}

// Checksum implements hw_ostc3_firmware_checksum: a 16-bit-sum variant of
// Fletcher-16 (16-bit accumulators wrapping modulo 2^16 rather than
// 2^16-1, packed high:low into the 32-bit result).
func Checksum(data *[Size]byte) uint32 {
	var low, high uint16
	for _, b := range data {
		low += uint16(b)
		high += low
	}
	return uint32(high)<<16 | uint32(low)
}

// ReadImage decodes a firmware container from r the way
// hw_ostc3_firmware_readfile does: a leading IV line, Size/lineSize
// encrypted data lines, and a trailing 4-byte checksum line, verifying
// the decoded image against that checksum.
func ReadImage(r io.Reader) (*Image, error) {
	const op = "firmware.ReadImage"

	br := bufio.NewReader(r)

	_, iv, err := readLine(br, len(Key))
	if err != nil {
		return nil, newErr(op, fmt.Errorf("parse header: %w", err))
	}

	block, err := aes.NewCipher(Key[:])
	if err != nil {
		return nil, newErr(op, err)
	}

	img := &Image{}
	for i := range img.Data {
		img.Data[i] = 0xFF
	}

	feedback := make([]byte, aes.BlockSize)
	block.Encrypt(feedback, iv)

	bytesRead := uint32(len(Key))
	for addr := 0; addr < Size; addr += lineSize {
		_, encrypted, err := readLine(br, lineSize)
		if err != nil {
			return nil, newErr(op, fmt.Errorf("parse data at 0x%06x: %w", addr, err))
		}
		bytesRead += lineSize

		for i := 0; i < lineSize; i++ {
			img.Data[addr+i] = encrypted[i] ^ feedback[i]
		}

		block.Encrypt(feedback, encrypted)
	}

	_, checksumBytes, err := readLine(br, 4)
	if err != nil {
		return nil, newErr(op, fmt.Errorf("parse tail: %w", err))
	}
	img.Checksum = uint32(checksumBytes[0]) | uint32(checksumBytes[1])<<8 |
		uint32(checksumBytes[2])<<16 | uint32(checksumBytes[3])<<24

	if img.Checksum != Checksum(&img.Data) {
		return nil, newErr(op, fmt.Errorf("checksum mismatch"))
	}

	return img, nil
}

// UpgradeCommand builds the S_UPGRADE packet hw_ostc3_firmware_upgrade
// sends: the little-endian checksum followed by a one-byte XOR-then-
// rotate check value the device uses to validate the command itself.
func UpgradeCommand(checksum uint32) []byte {
	buf := make([]byte, 5)
	buf[0] = byte(checksum)
	buf[1] = byte(checksum >> 8)
	buf[2] = byte(checksum >> 16)
	buf[3] = byte(checksum >> 24)

	check := byte(0x55)
	for i := 0; i < 4; i++ {
		check ^= buf[i]
		check = check<<1 | check>>7
	}
	buf[4] = check

	return buf
}

// Blocks splits an image into BlockSize-sized chunks, the unit
// hw_ostc3_firmware_block_write/_read erase, upload, and verify in.
func (img *Image) Blocks() [][]byte {
	var blocks [][]byte
	for off := 0; off < Size; off += BlockSize {
		end := off + BlockSize
		if end > Size {
			end = Size
		}
		blocks = append(blocks, img.Data[off:end])
	}
	return blocks
}

func newErr(op string, cause error) error {
	return &dc.Error{Status: dc.StatusDataFormat, Op: op, Err: cause}
}
