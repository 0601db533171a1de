package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/rotor/config"
)

// ConfigFile is where the wizard writes its result.
const ConfigFile = "config.gen.yaml"

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

func header(step string) {
	fmt.Print("\033[H\033[2J") // clear screen
	fmt.Println(headerStyle.Render("ROTOR CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and returns the written config path.
func RunTUI() (string, error) {
	def := config.Default()

	var (
		platform      = def.Platform
		assets        = strings.Join(def.Assets, ",")
		intervalStr   = def.TradeInterval.String()
		lookbackStr   = strconv.Itoa(def.LookbackPeriod)
		estimator     = def.Estimator
		fractionStr   = def.TradeFraction.String()
		minTradeStr   = def.MinTradeUSD.String()
		maxHoldingStr = strconv.Itoa(def.MaxHoldings)
		balanceStr    = def.SimulateQuoteBalance.String()
		confirm       bool
	)

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("ROTOR CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Let's get your portfolio rotating.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PLATFORM"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Bitstamp", config.PlatformBitstamp),
					huh.NewOption("Simulation (paper wallet, live prices)", config.PlatformSimulate),
				).
				Value(&platform),
		),
	).Run()
	if err != nil {
		return "", err
	}

	header("STEP 2: ASSETS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Tracked assets").
				Description("Comma separated, quoted in USD (e.g. btc,eth,xrp)").
				Value(&assets).
				Validate(func(s string) error {
					if strings.Trim(s, ", ") == "" {
						return fmt.Errorf("at least one asset is required")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return "", err
	}

	header("STEP 3: TIMING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trade Interval").
				Description("Duration string (e.g. 5m, 1h)").
				Value(&intervalStr).
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err != nil {
						return err
					}
					if d <= 0 {
						return fmt.Errorf("must be positive")
					}
					return nil
				}),
			huh.NewInput().
				Title("Lookback Period").
				Description("Prices kept per asset before it can be scored (min 2)").
				Value(&lookbackStr).
				Validate(validateInt(2)),
		),
	).Run()
	if err != nil {
		return "", err
	}

	header("STEP 4: STRATEGY")
	fields := []huh.Field{
		huh.NewSelect[string]().
			Title("Trend estimator").
			Options(
				huh.NewOption("Deviation from mean", "deviation"),
				huh.NewOption("Linear regression forecast", "regression"),
			).
			Value(&estimator),
		huh.NewInput().
			Title("Trade fraction").
			Description("Share of the balance used per trade (e.g. 0.5)").
			Value(&fractionStr).
			Validate(validateFraction),
		huh.NewInput().
			Title("Minimum trade (USD)").
			Value(&minTradeStr).
			Validate(validateDecimal),
		huh.NewInput().
			Title("Max holdings").
			Value(&maxHoldingStr).
			Validate(validateInt(def.MinHoldings)),
	}
	if platform == config.PlatformSimulate {
		fields = append(fields, huh.NewInput().
			Title("Paper USD balance").
			Value(&balanceStr).
			Validate(validateDecimal))
	}
	if err = huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return "", err
	}

	header("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nAssets: %s\nInterval: %s\nEstimator: %s\nFraction: %s\n",
		platform, assets, intervalStr, estimator, fractionStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return "", err
	}
	if !confirm {
		return "", fmt.Errorf("setup cancelled by user")
	}

	interval, _ := time.ParseDuration(intervalStr)
	lookback, _ := strconv.Atoi(lookbackStr)
	maxHoldings, _ := strconv.Atoi(maxHoldingStr)

	tmp := config.ConfigTmp{
		Platform:       platform,
		Assets:         strings.Split(assets, ","),
		TradeInterval:  interval,
		LookbackPeriod: lookback,
		Estimator:      estimator,
		TradeFraction:  fractionStr,
		MinTradeUSD:    minTradeStr,
		MaxHoldings:    maxHoldings,
	}
	if platform == config.PlatformSimulate {
		tmp.SimulateQuoteBalance = balanceStr
	}

	if err := Write(ConfigFile, tmp); err != nil {
		return "", err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\nConfiguration saved to %s\nStarting bot...", ConfigFile)))
	time.Sleep(1500 * time.Millisecond)
	return ConfigFile, nil
}

// Write validates tmp and saves it as yaml.
func Write(path string, tmp config.ConfigTmp) error {
	if _, err := tmp.ToConfig(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func validateInt(least int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("must be a whole number")
		}
		if n < least {
			return fmt.Errorf("must be at least %d", least)
		}
		return nil
	}
}

func validateDecimal(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateFraction(s string) error {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be greater than 0 and at most 1")
	}
	return nil
}
