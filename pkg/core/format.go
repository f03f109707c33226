package core

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var weiPerEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// FormatEther renders a wei amount as ether with four decimals.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0.0000"
	}
	return new(big.Rat).SetFrac(wei, weiPerEther).FloatString(4)
}

// ParseEther converts a decimal ether string ("0.01") to wei, truncating
// anything below one wei. Sign is preserved; callers validate positivity.
func ParseEther(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	r.Mul(r, new(big.Rat).SetInt(weiPerEther))
	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}

// ShortAddress abbreviates an address as 0x1234...abcd.
func ShortAddress(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
