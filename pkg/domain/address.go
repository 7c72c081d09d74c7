package domain

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "visitledger/pkg/domain-errors"
)

// AddressLength is the byte length of a principal address.
const AddressLength = 20

// Address is an opaque principal identifier. The ledger compares addresses for
// equality and never inspects their structure.
//
// Invariant: an Address obtained from ParseAddress is well formed; mixed-case
// input must carry a valid EIP-55 checksum.
type Address [AddressLength]byte

// ZeroAddress is the unset principal. Registries refuse it as a recipient.
var ZeroAddress Address

// ParseAddress validates a 0x-prefixed, 40 hex digit address. All-lower and
// all-upper input is accepted as is; mixed case must match the checksum.
func ParseAddress(s string) (Address, error) {
	raw := strings.TrimSpace(s)
	digits, ok := strings.CutPrefix(raw, "0x")
	if !ok {
		digits, ok = strings.CutPrefix(raw, "0X")
	}
	if !ok {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must start with 0x")
	}
	if len(digits) != 2*AddressLength {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address must have 40 hex digits")
	}

	var addr Address
	if _, err := hex.Decode(addr[:], []byte(digits)); err != nil {
		return Address{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "address is not hex")
	}
	if isMixedCase(digits) && addr.checksummed() != digits {
		return Address{}, dErrors.New(dErrors.CodeInvalidInput, "address checksum mismatch")
	}
	return addr, nil
}

// MustParseAddress is ParseAddress for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// Hex renders the address with its EIP-55 checksum.
func (a Address) Hex() string {
	return "0x" + a.checksummed()
}

// Lower renders the address as lowercase hex, the canonical storage key.
func (a Address) Lower() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) String() string {
	return a.Hex()
}

// IsZero reports whether the address is the unset principal.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Address) checksummed() string {
	lower := []byte(hex.EncodeToString(a[:]))

	h := sha3.NewLegacyKeccak256()
	h.Write(lower)
	digest := h.Sum(nil)

	out := make([]byte, len(lower))
	for i, c := range lower {
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if c >= 'a' && c <= 'f' && nibble >= 8 {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func isMixedCase(s string) bool {
	return strings.ToLower(s) != s && strings.ToUpper(s) != s
}
