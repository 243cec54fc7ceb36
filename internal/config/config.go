// Package config parses the operator's startup configuration (spec.md §6):
// the knobs needed to construct a Store, a chain Source, a channel Source,
// and the ledger.State they feed — and nothing else, since the wallet, the
// HTTP read API and the bootstrap CLI's broader flag surface are external
// collaborators per spec.md §1.
package config

import (
	"fmt"
	"math/big"

	flags "github.com/jessevdk/go-flags"

	"github.com/andrey/dataunion-core/internal/address"
)

// Config is the full set of operator knobs, parsed from flags and/or
// environment variables via jessevdk/go-flags (already the teacher's
// declared flag library, previously unused by its checked-in stub).
type Config struct {
	OperatorKey string `long:"operator-key" env:"OPERATOR_KEY" description:"operator signing key (only masked out of log output; this repo never signs a transaction)"`

	TokenAddress     string `long:"token-address" env:"TOKEN_ADDRESS" required:"true" description:"ERC-20 token address whose transfers to the community vault count as revenue"`
	CommunityAddress string `long:"community-address" env:"COMMUNITY_ADDRESS" required:"true" description:"community contract address"`

	BlockFreezeSeconds int64  `long:"block-freeze-seconds" env:"BLOCK_FREEZE_SECONDS" default:"1000" description:"seconds a committed block must age before it is withdrawable"`
	AdminFeeFraction   string `long:"admin-fee-fraction" env:"ADMIN_FEE_FRACTION" default:"0" description:"initial admin fee fraction, 1e18-scaled fixed point"`
	AdminAddress       string `long:"admin-address" env:"ADMIN_ADDRESS" description:"address credited with the admin's share of each revenue distribution"`

	ChainEndpoint string `long:"chain-endpoint" env:"CHAIN_ENDPOINT" required:"true" description:"RPC endpoint of the root chain"`
	ChainNetwork  string `long:"chain-network" env:"CHAIN_NETWORK" default:"mainnet" description:"root chain network name"`
	ChainID       int64  `long:"chain-id" env:"CHAIN_ID" default:"1" description:"root chain id; the operator does not preload a timestamp cold-cache for any chain id"`

	ChannelAddress string `long:"channel-address" env:"CHANNEL_ADDRESS" required:"true" description:"join-part channel node address (redis)"`

	StoreDir   string `long:"store-dir" env:"STORE_DIR" default:"./data/store" description:"state/block persistence directory"`
	TSCacheDir string `long:"timestamp-cache-dir" env:"TIMESTAMP_CACHE_DIR" default:"./data/tscache" description:"block-timestamp cache directory"`

	Quiet bool `long:"quiet" env:"QUIET" description:"log at warn level; INFO lines are still printed, only DEBUG/TRACE are filtered"`
	Reset bool `long:"reset" env:"RESET" description:"wipe persisted state and resync from the contract's genesis"`
}

// Parse parses args (typically os.Args[1:]) into a Config, applying
// environment-variable overrides per each field's env tag.
func Parse(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// AdminFeeFractionInt parses AdminFeeFraction into the 1e18-scaled integer
// ledger.State expects.
func (c *Config) AdminFeeFractionInt() (*big.Int, error) {
	v, ok := new(big.Int).SetString(c.AdminFeeFraction, 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid admin fee fraction %q", c.AdminFeeFraction)
	}
	return v, nil
}

// NormalizedAdminAddress returns AdminAddress in its canonical checksummed
// form, defaulting to the zero address if unset (the admin's credits — its
// fee share, rounding dust, and revenue that arrives while no member is
// active — then accrue to an address nobody can withdraw against, which is
// a valid operator choice for a zero-admin-fee community).
func (c *Config) NormalizedAdminAddress() (string, error) {
	if c.AdminAddress == "" {
		return address.Normalize("0x0000000000000000000000000000000000000000")
	}
	return address.Normalize(c.AdminAddress)
}
