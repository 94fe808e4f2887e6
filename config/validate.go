package config

import (
	"fmt"
	"math/big"
	"strings"

	"trustrent/crypto"
)

// Validate checks the loaded configuration for values the node cannot run with.
func (c *Config) Validate() error {
	switch c.DBBackend {
	case BackendLevelDB:
		if strings.TrimSpace(c.DataDir) == "" {
			return fmt.Errorf("config: DataDir required for leveldb backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown DBBackend %q", c.DBBackend)
	}
	if _, err := crypto.ParseAddress(c.Arbiter); err != nil {
		return fmt.Errorf("config: invalid Arbiter: %w", err)
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("config: rpc rate limits must not be negative")
	}
	if _, err := c.GenesisAllocations(); err != nil {
		return err
	}
	if c.Faucet.Enabled {
		if _, err := c.FaucetAmount(); err != nil {
			return err
		}
	}
	if _, err := c.PricingRate(); err != nil {
		return err
	}
	if c.Pricing.MaxAgeSeconds < 0 {
		return fmt.Errorf("config: pricing.MaxAgeSeconds must not be negative")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("config: telemetry.SampleRatio must be within [0, 1]")
	}
	return nil
}

// ParsedAllocation is a genesis allocation with decoded fields.
type ParsedAllocation struct {
	Address [20]byte
	Amount  *big.Int
}

// GenesisAllocations decodes the configured genesis allocations.
func (c *Config) GenesisAllocations() ([]ParsedAllocation, error) {
	out := make([]ParsedAllocation, 0, len(c.Genesis))
	for i, alloc := range c.Genesis {
		addr, err := crypto.ParseAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("config: genesis[%d].Address: %w", i, err)
		}
		amount, err := parseUintAmount(alloc.Amount)
		if err != nil {
			return nil, fmt.Errorf("config: genesis[%d].Amount: %w", i, err)
		}
		out = append(out, ParsedAllocation{Address: addr, Amount: amount})
	}
	return out, nil
}

// FaucetAmount parses the faucet drip amount.
func (c *Config) FaucetAmount() (*big.Int, error) {
	amount, err := parseUintAmount(c.Faucet.Amount)
	if err != nil {
		return nil, fmt.Errorf("config: faucet.Amount: %w", err)
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("config: faucet.Amount must be positive")
	}
	return amount, nil
}

// PricingRate parses the 8-decimal USD rate.
func (c *Config) PricingRate() (*big.Int, error) {
	rate, err := parseUintAmount(c.Pricing.RateE8)
	if err != nil {
		return nil, fmt.Errorf("config: pricing.RateE8: %w", err)
	}
	if rate.Sign() == 0 {
		return nil, fmt.Errorf("config: pricing.RateE8 must be positive")
	}
	return rate, nil
}

func parseUintAmount(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return amount, nil
}
