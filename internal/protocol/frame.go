package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Frame layout constants, shared by both protocol generations' layouts.
const (
	// header0 and header1 open every frame.
	header0 byte = 0xF1
	header1 byte = 0xF2

	// cmdIndividual marks a single register/value write.
	cmdIndividual byte = 0xA1

	// cmdReadAll asks the device to report all registers.
	cmdReadAll byte = 0xB1

	// cmdSettings marks a bulk settings block.
	cmdSettings byte = 0x03

	// footer0 and footer1 close every frame.
	footer0 byte = 0xFE
	footer1 byte = 0xFF
)

// Individual frame layout (11 bytes).
const (
	// IndividualFrameLen is the fixed length of an individual command frame.
	IndividualFrameLen = 11

	individualRegisterPos = 3
	individualValuePos    = 4
	individualChecksumPos = 8
)

// Settings frame layout (29 bytes).
const (
	// SettingsFrameLen is the fixed length of a bulk settings frame.
	SettingsFrameLen = 29

	settingsChecksumPos = 26

	// settingsRouterMACPos is the home_router_mac_address slot. A MAC does
	// not fit in one byte, so the slot is always forced to zero and the
	// address travels out of band.
	settingsRouterMACPos = 12
)

// Frame is one immutable protocol message: header, payload and checksum.
// Build frames only through the Encode functions; a frame of the wrong
// length is a programming error, not a runtime condition.
type Frame []byte

// Bytes returns the raw frame bytes.
func (f Frame) Bytes() []byte {
	return []byte(f)
}

// Hex returns the frame as an upper-case hex string, two characters per
// byte. This is the form stored in the command ledger and shown in audits.
func (f Frame) Hex() string {
	return strings.ToUpper(hex.EncodeToString(f))
}

// FrameFromHex rebuilds a frame from its ledger hex form.
func FrameFromHex(s string) (Frame, error) {
	raw, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	if len(raw) != IndividualFrameLen && len(raw) != SettingsFrameLen {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidFrame, len(raw))
	}
	return Frame(raw), nil
}

// Checksum computes the additive checksum over a frame: the sum of every
// byte except the one at checksumPos, modulo 256. The checksum covers the
// entire frame including header and footer constants.
func Checksum(frame []byte, checksumPos int) byte {
	var sum int
	for i, b := range frame {
		if i == checksumPos {
			continue
		}
		sum += int(b)
	}
	return byte(sum % 256)
}

// newIndividualFrame builds the common 11-byte skeleton for the given
// command byte and seals it with its checksum.
func newIndividualFrame(cmd, register, value byte) Frame {
	f := Frame{header0, header1, cmd, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, footer0, footer1}
	f[individualRegisterPos] = register
	f[individualValuePos] = value
	f[individualChecksumPos] = Checksum(f, individualChecksumPos)
	return f
}

// EncodeIndividual builds an 11-byte frame writing value to one register.
//
// Values are truncated to a single byte; range validation happens before
// values reach the encoder. Encoding the same pair twice yields
// byte-identical frames.
func EncodeIndividual(register byte, value int) Frame {
	return newIndividualFrame(cmdIndividual, register, byte(value))
}

// OffsetValue is the compound value of the temperature-offset register
// (RegisterOffsetTemp). Sign true means a negative offset.
type OffsetValue struct {
	Sign      bool
	Magnitude int
}

// offsetSignBit carries the sign in the encoded value byte, leaving seven
// bits for the magnitude.
const offsetSignBit byte = 0x80

// Encode packs the sign/magnitude pair into the single value byte used in
// the frame: bit 7 is the sign, bits 0-6 the magnitude.
func (o OffsetValue) Encode() byte {
	b := byte(o.Magnitude) &^ offsetSignBit
	if o.Sign {
		b |= offsetSignBit
	}
	return b
}

// EncodeOffset builds the individual frame for the compound
// temperature-offset register.
func EncodeOffset(v OffsetValue) Frame {
	return newIndividualFrame(cmdIndividual, RegisterOffsetTemp, v.Encode())
}

// EncodeReadAll builds the 11-byte frame that asks a device to report all
// of its registers. Register and value slots stay zero.
func EncodeReadAll() Frame {
	return newIndividualFrame(cmdReadAll, 0x00, 0x00)
}

// EncodeSettings builds the 29-byte bulk settings frame.
//
// Every known attribute in values is written at its reserved offset;
// offsets absent from the input stay zero. The router MAC slot is forced
// to zero regardless of input, and the checksum is computed last. The
// output depends only on the key/value pairs, never on map iteration
// order.
//
// An attribute name without a settings offset is a caller error and fails
// fast with ErrUnknownOffset.
func EncodeSettings(values map[string]int) (Frame, error) {
	f := make(Frame, SettingsFrameLen)
	f[0] = header0
	f[1] = header1
	f[2] = cmdSettings
	f[SettingsFrameLen-2] = footer0
	f[SettingsFrameLen-1] = footer1

	for name, value := range values {
		offset, err := SettingsOffsets.Resolve(name)
		if err != nil {
			return nil, err
		}
		f[offset] = byte(value)
	}

	f[settingsRouterMACPos] = 0x00
	f[settingsChecksumPos] = Checksum(f, settingsChecksumPos)
	return f, nil
}
