package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/rotor/internal/domain"
)

const (
	PlatformBitstamp = "bitstamp"
	PlatformSimulate = "simulate"
)

var DefaultAssets = []string{"btc", "eth", "xrp", "sol", "ltc", "doge", "ada", "hbar", "link", "shib", "matic"}

// Config is fixed for the lifetime of the process.
type Config struct {
	Platform             string
	Assets               []string
	Quote                string
	TradeInterval        time.Duration
	LookbackPeriod       int
	MinTradeUSD          decimal.Decimal
	TradeFraction        decimal.Decimal
	MaxHoldings          int
	MinHoldings          int
	SlippagePercent      decimal.Decimal
	Estimator            string
	OrderType            domain.OrderType
	HTTPTimeout          time.Duration
	RequestsPerSecond    float64
	StatusAddr           string
	TLSDomains           []string
	TLSCacheDir          string
	LedgerWALDir         string
	SimulateQuoteBalance decimal.Decimal
	SimulateStateDir     string
}

// ConfigTmp is the on-disk yaml form. Empty fields keep their defaults.
type ConfigTmp struct {
	Platform             string        `yaml:"platform,omitempty"`
	Assets               []string      `yaml:"assets,omitempty"`
	Quote                string        `yaml:"quote,omitempty"`
	TradeInterval        time.Duration `yaml:"trade_interval,omitempty"`
	LookbackPeriod       int           `yaml:"lookback_period,omitempty"`
	MinTradeUSD          string        `yaml:"min_trade_usd,omitempty"`
	TradeFraction        string        `yaml:"trade_fraction,omitempty"`
	MaxHoldings          int           `yaml:"max_holdings,omitempty"`
	MinHoldings          *int          `yaml:"min_holdings,omitempty"` // nil keeps the default, 0 disables diversification
	SlippagePercent      string        `yaml:"slippage_percent,omitempty"`
	Estimator            string        `yaml:"estimator,omitempty"`
	OrderType            string        `yaml:"order_type,omitempty"`
	HTTPTimeout          time.Duration `yaml:"http_timeout,omitempty"`
	RequestsPerSecond    float64       `yaml:"requests_per_second,omitempty"`
	StatusAddr           string        `yaml:"status_addr,omitempty"`
	TLSDomains           []string      `yaml:"tls_domains,omitempty"`
	TLSCacheDir          string        `yaml:"tls_cache_dir,omitempty"`
	LedgerWALDir         string        `yaml:"ledger_wal_dir,omitempty"`
	SimulateQuoteBalance string        `yaml:"simulate_quote_balance,omitempty"`
	SimulateStateDir     string        `yaml:"simulate_state_dir,omitempty"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Platform:             PlatformBitstamp,
		Assets:               append([]string(nil), DefaultAssets...),
		Quote:                "usd",
		TradeInterval:        time.Hour,
		LookbackPeriod:       10,
		MinTradeUSD:          decimal.NewFromInt(5),
		TradeFraction:        decimal.RequireFromString("0.5"),
		MaxHoldings:          5,
		MinHoldings:          3,
		SlippagePercent:      decimal.RequireFromString("0.5"),
		Estimator:            "deviation",
		OrderType:            domain.OrderTypeLimit,
		HTTPTimeout:          10 * time.Second,
		RequestsPerSecond:    5,
		StatusAddr:           ":5000",
		TLSCacheDir:          "cert-cache",
		SimulateQuoteBalance: decimal.NewFromInt(1000),
	}
}

// Get reads the config from the yaml file given by -config, or from CLI flags.
func Get() (Config, error) {
	return parse(flag.CommandLine, os.Args[1:])
}

func parse(fs *flag.FlagSet, args []string) (Config, error) {
	def := Default()

	path := fs.String("config", "", "path to yaml config")
	platform := fs.String("platform", def.Platform, "exchange platform: bitstamp or simulate")
	assets := fs.String("assets", strings.Join(def.Assets, ","), "comma separated tracked assets")
	quote := fs.String("quote", def.Quote, "quote currency")
	interval := fs.Duration("interval", def.TradeInterval, "trade interval")
	lookback := fs.Int("lookback", def.LookbackPeriod, "price history length per asset")
	minTrade := fs.String("mintrade", def.MinTradeUSD.String(), "minimum trade notional in quote currency")
	fraction := fs.String("fraction", def.TradeFraction.String(), "fraction of balance used per trade, e.g. 0.5")
	maxHoldings := fs.Int("maxholdings", def.MaxHoldings, "maximum number of held assets")
	minHoldings := fs.Int("minholdings", def.MinHoldings, "diversification floor")
	slippage := fs.String("slippage", def.SlippagePercent.String(), "limit price offset in percent")
	estimator := fs.String("estimator", def.Estimator, "trend estimator: deviation or regression")
	orderType := fs.String("ordertype", string(def.OrderType), "order type: limit or market")
	statusAddr := fs.String("statusaddr", def.StatusAddr, "status server listen address")
	ledgerWAL := fs.String("ledgerwal", def.LedgerWALDir, "ledger WAL directory, empty keeps the ledger in memory")
	simState := fs.String("simstate", def.SimulateStateDir, "paper wallet state directory, empty keeps the wallet in memory")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if *path != "" {
		return Load(*path)
	}

	tmp := ConfigTmp{
		Platform:         *platform,
		Assets:           strings.Split(*assets, ","),
		Quote:            *quote,
		TradeInterval:    *interval,
		LookbackPeriod:   *lookback,
		MinTradeUSD:      *minTrade,
		TradeFraction:    *fraction,
		MaxHoldings:      *maxHoldings,
		MinHoldings:      minHoldings,
		SlippagePercent:  *slippage,
		Estimator:        *estimator,
		OrderType:        *orderType,
		StatusAddr:       *statusAddr,
		LedgerWALDir:     *ledgerWAL,
		SimulateStateDir: *simState,
	}

	return tmp.ToConfig()
}

// Load reads a yaml config file.
func Load(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	var tmp ConfigTmp
	if err := yaml.Unmarshal(f, &tmp); err != nil {
		return Config{}, errors.Wrap(err, "parse yaml config")
	}

	return tmp.ToConfig()
}

// ToConfig applies the set fields over the defaults and validates the result.
func (c ConfigTmp) ToConfig() (Config, error) {
	conf := Default()

	if c.Platform != "" {
		conf.Platform = strings.ToLower(c.Platform)
	}
	if len(c.Assets) > 0 {
		conf.Assets = normalizeAssets(c.Assets)
	}
	if c.Quote != "" {
		conf.Quote = strings.ToLower(c.Quote)
	}
	if c.TradeInterval != 0 {
		conf.TradeInterval = c.TradeInterval
	}
	if c.LookbackPeriod != 0 {
		conf.LookbackPeriod = c.LookbackPeriod
	}
	if c.MaxHoldings != 0 {
		conf.MaxHoldings = c.MaxHoldings
	}
	if c.MinHoldings != nil {
		conf.MinHoldings = *c.MinHoldings
	}
	if c.Estimator != "" {
		conf.Estimator = c.Estimator
	}
	if c.OrderType != "" {
		conf.OrderType = domain.OrderType(strings.ToLower(c.OrderType))
	}
	if c.HTTPTimeout != 0 {
		conf.HTTPTimeout = c.HTTPTimeout
	}
	if c.RequestsPerSecond != 0 {
		conf.RequestsPerSecond = c.RequestsPerSecond
	}
	if c.StatusAddr != "" {
		conf.StatusAddr = c.StatusAddr
	}
	if len(c.TLSDomains) > 0 {
		conf.TLSDomains = c.TLSDomains
	}
	if c.TLSCacheDir != "" {
		conf.TLSCacheDir = c.TLSCacheDir
	}
	conf.LedgerWALDir = c.LedgerWALDir
	conf.SimulateStateDir = c.SimulateStateDir

	decimals := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"min_trade_usd", c.MinTradeUSD, &conf.MinTradeUSD},
		{"trade_fraction", c.TradeFraction, &conf.TradeFraction},
		{"slippage_percent", c.SlippagePercent, &conf.SlippagePercent},
		{"simulate_quote_balance", c.SimulateQuoteBalance, &conf.SimulateQuoteBalance},
	}
	for _, d := range decimals {
		if d.value == "" {
			continue
		}
		v, err := decimal.NewFromString(d.value)
		if err != nil {
			return Config{}, errors.Wrapf(err, "incorrect '%s' param (must be a decimal)", d.name)
		}
		*d.dst = v
	}

	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Tmp converts back to the yaml form.
func (c Config) Tmp() ConfigTmp {
	return ConfigTmp{
		Platform:             c.Platform,
		Assets:               c.Assets,
		Quote:                c.Quote,
		TradeInterval:        c.TradeInterval,
		LookbackPeriod:       c.LookbackPeriod,
		MinTradeUSD:          c.MinTradeUSD.String(),
		TradeFraction:        c.TradeFraction.String(),
		MaxHoldings:          c.MaxHoldings,
		MinHoldings:          &c.MinHoldings,
		SlippagePercent:      c.SlippagePercent.String(),
		Estimator:            c.Estimator,
		OrderType:            string(c.OrderType),
		HTTPTimeout:          c.HTTPTimeout,
		RequestsPerSecond:    c.RequestsPerSecond,
		StatusAddr:           c.StatusAddr,
		TLSDomains:           c.TLSDomains,
		TLSCacheDir:          c.TLSCacheDir,
		LedgerWALDir:         c.LedgerWALDir,
		SimulateQuoteBalance: c.SimulateQuoteBalance.String(),
		SimulateStateDir:     c.SimulateStateDir,
	}
}

// Validate rejects settings the trading loop cannot run with.
func (c Config) Validate() error {
	switch c.Platform {
	case PlatformBitstamp, PlatformSimulate:
	default:
		return errors.Errorf("unsupported platform %q", c.Platform)
	}
	if len(c.Assets) == 0 {
		return errors.New("at least one asset must be tracked")
	}
	for _, a := range c.Assets {
		if a == c.Quote {
			return errors.Errorf("quote currency %q cannot be tracked", a)
		}
	}
	if c.Quote == "" {
		return errors.New("quote currency is required")
	}
	if c.TradeInterval <= 0 {
		return errors.New("trade interval must be positive")
	}
	if c.LookbackPeriod < 2 {
		return errors.Errorf("lookback period must be at least 2, got %d", c.LookbackPeriod)
	}
	if !c.TradeFraction.IsPositive() || c.TradeFraction.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Errorf("trade fraction must be in (0, 1], got %s", c.TradeFraction)
	}
	if c.MinTradeUSD.IsNegative() {
		return errors.New("minimum trade must not be negative")
	}
	if c.MinHoldings < 0 || c.MaxHoldings < c.MinHoldings {
		return errors.Errorf("holdings bounds invalid: min %d, max %d", c.MinHoldings, c.MaxHoldings)
	}
	if c.SlippagePercent.IsNegative() || c.SlippagePercent.GreaterThanOrEqual(decimal.NewFromInt(10)) {
		return errors.Errorf("slippage must be in [0, 10), got %s", c.SlippagePercent)
	}
	switch c.Estimator {
	case "deviation", "regression":
	default:
		return errors.Errorf("unknown estimator %q", c.Estimator)
	}
	if !c.OrderType.IsValid() {
		return errors.Errorf("unknown order type %q", c.OrderType)
	}
	if c.HTTPTimeout <= 0 {
		return errors.New("http timeout must be positive")
	}
	if c.RequestsPerSecond <= 0 {
		return errors.New("requests per second must be positive")
	}
	if c.Platform == PlatformSimulate && !c.SimulateQuoteBalance.IsPositive() {
		return errors.New("simulate quote balance must be positive")
	}
	return nil
}

func normalizeAssets(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	return out
}
