package boc

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Address is a TON account address: a workchain plus a 256-bit hash.
type Address struct {
	Workchain int8
	Hash      [32]byte
}

var ErrInvalidAddress = errors.New("boc: invalid address")

const (
	tagBounceable    = 0x11
	tagNonBounceable = 0x51
	tagTestOnly      = 0x80
)

// ParseAddress accepts both the user-friendly base64 form (48 chars,
// url-safe or standard alphabet) and the raw "wc:hex" form.
func ParseAddress(s string) (*Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidAddress
	}

	if i := strings.IndexByte(s, ':'); i >= 0 {
		return parseRawAddress(s[:i], s[i+1:])
	}

	raw, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		raw, err = base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, s)
		}
	}
	if len(raw) != 36 {
		return nil, fmt.Errorf("%w: wrong length %d", ErrInvalidAddress, len(raw))
	}

	tag := raw[0] &^ tagTestOnly
	if tag != tagBounceable && tag != tagNonBounceable {
		return nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrInvalidAddress, raw[0])
	}
	if crc16(raw[:34]) != uint16(raw[34])<<8|uint16(raw[35]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	addr := &Address{Workchain: int8(raw[1])}
	copy(addr.Hash[:], raw[2:34])
	return addr, nil
}

func parseRawAddress(wc, hash string) (*Address, error) {
	wcVal, err := strconv.ParseInt(wc, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: workchain %q", ErrInvalidAddress, wc)
	}
	raw, err := hex.DecodeString(hash)
	if err != nil || len(raw) != 32 {
		return nil, fmt.Errorf("%w: hash %q", ErrInvalidAddress, hash)
	}
	addr := &Address{Workchain: int8(wcVal)}
	copy(addr.Hash[:], raw)
	return addr, nil
}

// String renders the bounceable user-friendly form.
func (a *Address) String() string {
	return a.ToFriendly(true)
}

// ToFriendly renders the user-friendly base64url form.
func (a *Address) ToFriendly(bounceable bool) string {
	raw := make([]byte, 36)
	if bounceable {
		raw[0] = tagBounceable
	} else {
		raw[0] = tagNonBounceable
	}
	raw[1] = byte(a.Workchain)
	copy(raw[2:34], a.Hash[:])
	sum := crc16(raw[:34])
	raw[34] = byte(sum >> 8)
	raw[35] = byte(sum)
	return base64.URLEncoding.EncodeToString(raw)
}

// ToRaw renders the "wc:hex" form used by HTTP chain APIs.
func (a *Address) ToRaw() string {
	return fmt.Sprintf("%d:%s", a.Workchain, hex.EncodeToString(a.Hash[:]))
}

// Equal reports whether two addresses name the same account.
func (a *Address) Equal(other *Address) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Workchain == other.Workchain && a.Hash == other.Hash
}

// crc16 is the CCITT/XMODEM variant the address checksum uses.
func crc16(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
