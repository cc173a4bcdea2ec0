// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package rclink

// Checksum computes the additive checksum of a payload: the sum of all bytes
// truncated to 8 bits.
func Checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return sum
}

// frameChecksum computes the checksum over the bytes between the header and
// the checksum byte of a complete frame.
func frameChecksum(s KindSpec, frame []byte) byte {
	return Checksum(frame[HeaderSize:s.ChecksumOffset()])
}

// VerifyChecksum checks the checksum of a complete frame of the given kind.
// Kinds without a checksum always verify.
func VerifyChecksum(k Kind, frame []byte) error {
	s, ok := Spec(k)
	if !ok {
		return ErrUnknownKind
	}
	if !s.Checksum {
		return nil
	}
	if len(frame) < s.Size {
		return ErrShortFrame
	}
	want := frameChecksum(s, frame)
	got := frame[s.ChecksumOffset()]
	if want != got {
		return &ChecksumError{Kind: k, Expected: want, Received: got}
	}
	return nil
}

// sealChecksum writes the checksum byte into a fully populated frame
func sealChecksum(s KindSpec, frame []byte) []byte {
	frame[s.ChecksumOffset()] = frameChecksum(s, frame)
	return frame
}
