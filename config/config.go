// Package config loads the auction house configuration from a TOML file with
// environment overrides.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/httpapi"
	"github.com/cloudx-io/auctionhouse/logging"
	"github.com/cloudx-io/auctionhouse/server"
	"github.com/cloudx-io/auctionhouse/store"
	"github.com/cloudx-io/auctionhouse/token"
)

// EnvPrefix prefixes environment overrides, e.g. AUCTION_FEE_NUMERATOR.
const EnvPrefix = "AUCTION"

type Config struct {
	Fee      Fee            `toml:"fee" mapstructure:"fee" json:"fee"`
	Escrow   string         `toml:"escrow" mapstructure:"escrow" json:"escrow"`
	Admins   []string       `toml:"admins" mapstructure:"admins" json:"admins"`
	Server   server.Config  `toml:"server" mapstructure:"server" json:"server"`
	HTTP     httpapi.Config `toml:"http" mapstructure:"http" json:"http"`
	Store    store.Config   `toml:"store" mapstructure:"store" json:"store"`
	Receipts Receipts       `toml:"receipts" mapstructure:"receipts" json:"receipts"`
	Log      logging.Config `toml:"log" mapstructure:"log" json:"log"`
	Token    Token          `toml:"token" mapstructure:"token" json:"token"`
	NFT      NFT            `toml:"nft" mapstructure:"nft" json:"nft"`
	Devnet   bool           `toml:"devnet" mapstructure:"devnet" json:"devnet"`
}

// Fee is the platform fee numerator/denominator paid to Treasury.
type Fee struct {
	Numerator   uint64 `toml:"numerator" mapstructure:"numerator" json:"numerator"`
	Denominator uint64 `toml:"denominator" mapstructure:"denominator" json:"denominator"`
	Treasury    string `toml:"treasury" mapstructure:"treasury" json:"treasury"`
}

func (f Fee) FeeConfig() core.FeeConfig {
	return core.FeeConfig{
		Numerator:   f.Numerator,
		Denominator: f.Denominator,
		Treasury:    core.Address(f.Treasury),
	}
}

// Receipts configures signed settlement receipts. A missing key file is
// generated on first start.
type Receipts struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled" json:"enabled"`
	KeyPath string `toml:"key_path" mapstructure:"key_path" json:"key_path"`
	Attest  bool   `toml:"attest" mapstructure:"attest" json:"attest"`
}

// Token configures the reference settlement token.
type Token struct {
	Name          string    `toml:"name" mapstructure:"name" json:"name"`
	Symbol        string    `toml:"symbol" mapstructure:"symbol" json:"symbol"`
	Owner         string    `toml:"owner" mapstructure:"owner" json:"owner"`
	InitialSupply string    `toml:"initial_supply" mapstructure:"initial_supply" json:"initial_supply"`
	Genesis       []Balance `toml:"genesis" mapstructure:"genesis" json:"genesis"`
}

// Balance is minted to Account at startup. Amount is in smallest units.
type Balance struct {
	Account string `toml:"account" mapstructure:"account" json:"account"`
	Amount  string `toml:"amount" mapstructure:"amount" json:"amount"`
}

// NFT configures the reference asset registry.
type NFT struct {
	Name   string `toml:"name" mapstructure:"name" json:"name"`
	Symbol string `toml:"symbol" mapstructure:"symbol" json:"symbol"`
	Minter string `toml:"minter" mapstructure:"minter" json:"minter"`
}

// UnmarshalConfig reads the TOML file at configFilePath over DefaultConfig and
// applies AUCTION_* environment overrides.
func UnmarshalConfig(configFilePath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configFilePath)
	v.SetConfigType("toml")
	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "read config %s", configFilePath)
	}
	config := DefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults registers every key so that environment overrides apply even
// when the file omits the key.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("fee.numerator", d.Fee.Numerator)
	v.SetDefault("fee.denominator", d.Fee.Denominator)
	v.SetDefault("fee.treasury", d.Fee.Treasury)
	v.SetDefault("escrow", d.Escrow)
	v.SetDefault("admins", d.Admins)
	v.SetDefault("server.transport", d.Server.Transport)
	v.SetDefault("server.address", d.Server.Address)
	v.SetDefault("server.vsock_port", d.Server.VsockPort)
	v.SetDefault("server.max_workers", d.Server.MaxWorkers)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("http.listen", d.HTTP.Listen)
	v.SetDefault("http.cors_origins", d.HTTP.CORSOrigins)
	v.SetDefault("http.pprof", d.HTTP.Pprof)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.dsn", d.Store.DSN)
	v.SetDefault("receipts.enabled", d.Receipts.Enabled)
	v.SetDefault("receipts.key_path", d.Receipts.KeyPath)
	v.SetDefault("receipts.attest", d.Receipts.Attest)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("token.name", d.Token.Name)
	v.SetDefault("token.symbol", d.Token.Symbol)
	v.SetDefault("token.owner", d.Token.Owner)
	v.SetDefault("token.initial_supply", d.Token.InitialSupply)
	v.SetDefault("nft.name", d.NFT.Name)
	v.SetDefault("nft.symbol", d.NFT.Symbol)
	v.SetDefault("nft.minter", d.NFT.Minter)
	v.SetDefault("devnet", d.Devnet)
}

func DefaultConfig() *Config {
	return &Config{
		Fee:    Fee{Numerator: 10, Denominator: 100},
		Escrow: "auction-house",
		Server: server.Config{
			Transport:   server.TransportTCP,
			Address:     "127.0.0.1:5000",
			VsockPort:   5000,
			MaxWorkers:  16,
			ReadTimeout: 30 * time.Second,
		},
		Store:    store.Config{Driver: store.DriverNone},
		Receipts: Receipts{KeyPath: "./data/receipt-key.pem"},
		Log:      logging.Config{Level: "info"},
		Token: Token{
			Name:          token.DefaultName,
			Symbol:        token.DefaultSymbol,
			InitialSupply: "0",
		},
		NFT: NFT{Name: "Art NFT", Symbol: "ARTN"},
	}
}

// Validate rejects configurations the auction house cannot start with.
func (c *Config) Validate() error {
	if err := c.Fee.FeeConfig().Validate(); err != nil {
		return errors.Wrap(err, "fee")
	}
	if c.Escrow == "" {
		return errors.Wrap(core.ErrInvalidParameters, "escrow account is required")
	}
	if c.Escrow == c.Fee.Treasury {
		return errors.Wrap(core.ErrInvalidParameters, "escrow and treasury must differ")
	}
	switch c.Server.Transport {
	case server.TransportTCP, server.TransportVsock:
	default:
		return errors.Wrapf(core.ErrInvalidParameters, "unknown server transport %q", c.Server.Transport)
	}
	if c.Server.MaxWorkers <= 0 {
		return errors.Wrap(core.ErrInvalidParameters, "server.max_workers must be positive")
	}
	switch c.Store.Driver {
	case store.DriverNone, store.DriverFile, store.DriverMySQL:
	default:
		return errors.Wrapf(core.ErrInvalidParameters, "unknown store driver %q", c.Store.Driver)
	}
	if c.Receipts.Enabled && c.Receipts.KeyPath == "" {
		return errors.Wrap(core.ErrInvalidParameters, "receipts.key_path is required when receipts are enabled")
	}
	if c.Token.Owner == "" {
		return errors.Wrap(core.ErrInvalidParameters, "token.owner is required")
	}
	if c.NFT.Minter == "" {
		return errors.Wrap(core.ErrInvalidParameters, "nft.minter is required")
	}
	for _, b := range c.Token.Genesis {
		if b.Account == "" {
			return errors.Wrap(core.ErrInvalidParameters, "genesis balance without account")
		}
		if _, err := core.ParseAmount(b.Amount); err != nil {
			return errors.Wrapf(err, "genesis balance for %s", b.Account)
		}
	}
	if _, err := core.ParseAmount(c.Token.InitialSupply); err != nil {
		return errors.Wrap(err, "token.initial_supply")
	}
	return nil
}

// AdminAddresses returns the configured admins as addresses.
func (c *Config) AdminAddresses() []core.Address {
	out := make([]core.Address, 0, len(c.Admins))
	for _, a := range c.Admins {
		out = append(out, core.Address(a))
	}
	return out
}
