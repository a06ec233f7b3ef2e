// Package utils provides utility functions and constants for common operations
// throughout the application.
package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Ethereum address constants
var (
	// NullEthereumAddress is the null Ethereum address without the 0x prefix
	NullEthereumAddress = "0000000000000000000000000000000000000000"

	// NullEthereumAddressHex is the null Ethereum address with the 0x prefix
	NullEthereumAddressHex = fmt.Sprintf("0x%s", NullEthereumAddress)
)

// AreAddressesEqual compares two Ethereum addresses for equality, ignoring case.
func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// NormalizeAddress returns the lower-case hex form used as the storage key for an address.
func NormalizeAddress(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// ParseAddress parses a hex address, rejecting anything that is not 20 bytes of hex.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address '%s'", s)
	}
	return common.HexToAddress(s), nil
}

// ParseBigInt parses a base-10 integer string.
func ParseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer '%s'", s)
	}
	return v, nil
}

// Map applies f to every element of l.
func Map[A any, B any](l []A, f func(A, uint64) B) []B {
	out := make([]B, len(l))
	for i, v := range l {
		out[i] = f(v, uint64(i))
	}
	return out
}

// Filter returns the elements of l for which f returns true.
func Filter[A any](l []A, f func(A) bool) []A {
	out := make([]A, 0)
	for _, v := range l {
		if f(v) {
			out = append(out, v)
		}
	}
	return out
}
