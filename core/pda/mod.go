// Package pda derives program addresses.
//
// A program address is the SHA-256 digest of a list of seeds followed by the
// program identity and a fixed marker. The digest must not be a valid Ed25519
// point so that no private key can exist for it: the only way to act for the
// address is to present the seeds to the program that owns it.
package pda

import (
	"encoding/hex"

	"go.dedis.ch/cnotes/crypto"
	"go.dedis.ch/cnotes/crypto/ed25519"
	"golang.org/x/xerrors"
)

const (
	// AddressSize is the size in bytes of an address.
	AddressSize = 32

	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16

	// MaxSeedLen is the maximum length in bytes of a single seed.
	MaxSeedLen = 32

	marker = "ProgramDerivedAddress"
)

var (
	// ErrMaxSeeds is returned when too many seeds are provided.
	ErrMaxSeeds = xerrors.New("too many seeds")

	// ErrSeedTooLong is returned when a seed is longer than MaxSeedLen.
	ErrSeedTooLong = xerrors.New("seed too long")

	// ErrOnCurve is returned when the derived address is a curve point.
	ErrOnCurve = xerrors.New("address is on the curve")

	// ErrNoBump is returned when no bump produces a valid address.
	ErrNoBump = xerrors.New("no valid bump")
)

var hashFactory = crypto.NewHashFactory(crypto.Sha256)

// Address is a 32-bytes account address.
type Address [AddressSize]byte

// ParseAddress decodes the hexadecimal representation of an address.
func ParseAddress(text string) (Address, error) {
	var addr Address

	err := addr.UnmarshalText([]byte(text))
	if err != nil {
		return addr, err
	}

	return addr, nil
}

// AddressFromBytes copies the data into an address.
func AddressFromBytes(data []byte) (Address, error) {
	var addr Address

	if len(data) != AddressSize {
		return addr, xerrors.Errorf("invalid address length %d", len(data))
	}

	copy(addr[:], data)

	return addr, nil
}

// MarshalText implements encoding.TextMarshaler. It returns the hexadecimal
// representation of the address.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	data, err := hex.DecodeString(string(text))
	if err != nil {
		return xerrors.Errorf("malformed address: %v", err)
	}

	addr, err := AddressFromBytes(data)
	if err != nil {
		return err
	}

	*a = addr

	return nil
}

// String implements fmt.Stringer.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// CreateProgramAddress returns the address derived from the seeds and the
// program. It fails if the seeds exceed the limits or if the digest is a point
// of the curve.
func CreateProgramAddress(seeds [][]byte, program Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, xerrors.Errorf("%d seeds: %w", len(seeds), ErrMaxSeeds)
	}

	h := hashFactory.New()

	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Address{}, xerrors.Errorf("%d bytes: %w", len(seed), ErrSeedTooLong)
		}

		h.Write(seed)
	}

	h.Write(program[:])
	h.Write([]byte(marker))

	var addr Address
	copy(addr[:], h.Sum(nil))

	if ed25519.IsPoint(addr[:]) {
		return Address{}, ErrOnCurve
	}

	return addr, nil
}

// FindProgramAddress looks for the first bump, from 255 down to 0, that
// produces a valid address when appended to the seeds. It returns the address
// and the bump.
func FindProgramAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}

		addr, err := CreateProgramAddress(withBump, program)
		if err == nil {
			return addr, uint8(bump), nil
		}

		if !xerrors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}

	return Address{}, 0, ErrNoBump
}
