package config

import (
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"
)

// TierRatesFile is the YAML document accepted by "tokenfarm init":
//
//	tiers:
//	  10: "1000000000"
//	  100: "1000000000000"
//	  1000: "1000000000000000"
//
// Rates are decimal strings since they routinely exceed 64 bits.
type TierRatesFile struct {
	Tiers map[uint64]string `yaml:"tiers"`
}

// ParseTierRates decodes a TierRatesFile document. Missing or unknown keys
// are left for the ledger to reject.
func ParseTierRates(data []byte) (map[uint64]*big.Int, error) {
	var f TierRatesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse tier rates: %w", err)
	}
	if len(f.Tiers) == 0 {
		return nil, fmt.Errorf("no tiers defined")
	}
	rates := make(map[uint64]*big.Int, len(f.Tiers))
	for key, value := range f.Tiers {
		rate, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return nil, fmt.Errorf("tier %d: invalid rate '%s'", key, value)
		}
		rates[key] = rate
	}
	return rates, nil
}

// LoadTierRates reads the rates from path, or returns DefaultTierRates when
// path is empty.
func LoadTierRates(path string) (map[uint64]*big.Int, error) {
	if path == "" {
		return DefaultTierRates(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tier rates file: %w", err)
	}
	return ParseTierRates(data)
}
