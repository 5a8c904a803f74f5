package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/flasharb/blacklist"
	"github.com/michaelpento.lv/flasharb/config"
	"github.com/michaelpento.lv/flasharb/executor"
	"github.com/michaelpento.lv/flasharb/gas"
	"github.com/michaelpento.lv/flasharb/ladder"
	"github.com/michaelpento.lv/flasharb/quote"
	"github.com/michaelpento.lv/flasharb/router"
	"github.com/michaelpento.lv/flasharb/scanner"
	"github.com/michaelpento.lv/flasharb/tokens"
	"github.com/michaelpento.lv/flasharb/types"
	"github.com/michaelpento.lv/flasharb/utils"
	"github.com/michaelpento.lv/flasharb/utils/metrics"
	"github.com/michaelpento.lv/flasharb/utils/monitor"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run the arbitrage scan loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := utils.GetLogger()
		defer utils.CleanupLogger()

		if err := config.LoadEnv(); err != nil {
			log.Warn("Failed to load .env file", zap.Error(err))
		}
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		return runScan(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

// dryRunExecutor stands in for the real executor when broadcasting is
// disabled. It refuses every execution so trials still walk the full
// pre-commit pipeline without spending a nonce.
type dryRunExecutor struct {
	logger *zap.Logger
}

func (d *dryRunExecutor) Execute(ctx context.Context, trial *types.Trial) (common.Hash, error) {
	d.logger.Info("Dry run mode, skipping broadcast",
		zap.String("path", trial.Path.Symbols()),
		zap.String("amount", trial.Amount.String()))
	return common.Hash{}, fmt.Errorf("broadcasting disabled in dry run mode")
}

func runScan(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if !cfg.DryRunOnly && cfg.ArbitrageContract == "" {
		return fmt.Errorf("arbitrage_contract must be set unless dry_run_only is enabled")
	}

	client, err := ethclient.Dial(cfg.RPCEndpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to node: %w", err)
	}
	defer client.Close()

	registry := router.DefaultRegistry()
	if cfg.RouterFile != "" {
		registry, err = router.LoadRegistry(cfg.RouterFile)
		if err != nil {
			return fmt.Errorf("failed to load router registry: %w", err)
		}
	}

	source, err := tokens.NewSource(cfg.TokenListURL, cfg.TokenFile, cfg.ChainID, log)
	if err != nil {
		return err
	}
	universe, err := source.Universe(ctx)
	if err != nil {
		return fmt.Errorf("failed to load token universe: %w", err)
	}
	if len(cfg.TokenSymbols) > 0 {
		universe, err = source.Resolve(ctx, cfg.TokenSymbols)
		if err != nil {
			return err
		}
	}
	settlements, err := source.Resolve(ctx, cfg.SettlementTokens)
	if err != nil {
		return err
	}
	bridgeTokens, err := source.Resolve(ctx, cfg.BridgeTokens)
	if err != nil {
		return err
	}
	bridges := make([]common.Address, len(bridgeTokens))
	for i, t := range bridgeTokens {
		bridges[i] = t.Address
	}
	log.Info("Trading universe loaded",
		zap.Int("tokens", len(universe)),
		zap.Int("settlements", len(settlements)),
		zap.Int("bridges", len(bridges)),
		zap.Int("routers", len(registry.Addresses())))

	cache, err := blacklist.Open(cfg.PairBlacklistFile, cfg.TriangleBlacklistFile, cfg.PromotionThreshold, log)
	if err != nil {
		return fmt.Errorf("failed to open blacklist cache: %w", err)
	}

	var scanM *metrics.ScanMetrics
	var quoteM *metrics.QuoteMetrics
	var execM *metrics.ExecutionMetrics
	if cfg.PrometheusEnabled {
		metrics.Initialize(&metrics.MetricsConfig{ReportInterval: time.Minute}, log)
		scanM = metrics.NewScanMetrics("flasharb_scan")
		quoteM = metrics.NewQuoteMetrics("flasharb_quote")
		execM = metrics.NewExecutionMetrics("flasharb_exec")
		sysMon, err := monitor.NewSystemMonitor(ctx, log)
		if err != nil {
			return err
		}
		defer sysMon.Cleanup()
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.PrometheusEndpoint, mux); err != nil {
				log.Error("Metrics endpoint failed", zap.Error(err))
			}
		}()
	}

	engine := quote.NewEngine(client, registry, cfg.Multicall(), bridges, quoteM, log)

	estimator := gas.NewEstimator(client, log)
	defer estimator.Stop()

	key, err := signingKey(cfg)
	if err != nil {
		return err
	}

	var tradeLog *executor.TradeLog
	if cfg.TradeLogFile != "" {
		tradeLog, err = executor.OpenTradeLog(cfg.TradeLogFile)
		if err != nil {
			return err
		}
		defer tradeLog.Close()
	}

	exec := executor.New(client, cfg.Contract(), key, big.NewInt(cfg.ChainID), tradeLog, log)

	var sender ladder.Executor = exec
	if cfg.DryRunOnly {
		sender = &dryRunExecutor{logger: log}
	}

	evaluator := ladder.NewEvaluator(ladder.Config{
		Amounts:             cfg.TrialAmounts,
		MinNetProfit:        cfg.MinNetProfit,
		LegRatioLimit:       cfg.LegRatioLimit,
		RoundTripRatioLimit: cfg.RoundTripRatioLimit,
	}, engine, exec, estimator, sender, cache, execM, log)

	scan := scanner.New(scanner.Config{
		CycleDelay:        cfg.CycleDelay,
		AttemptDelay:      cfg.AttemptDelay,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxConcurrent:     cfg.MaxConcurrent,
		ProbeUnits:        cfg.ProbeUnits,
	}, universe, settlements, registry, cache, engine, evaluator, scanM, log)

	log.Info("Starting scan loop",
		zap.Int64("chainID", cfg.ChainID),
		zap.String("signer", exec.From().Hex()),
		zap.Bool("dryRunOnly", cfg.DryRunOnly))
	return scan.Run(ctx)
}

// signingKey loads the execution key from the environment, or
// generates a throwaway one when broadcasting is disabled so the dry
// run pipeline still has a caller address.
func signingKey(cfg *config.Config) (*ecdsa.PrivateKey, error) {
	if cfg.DryRunOnly {
		return crypto.GenerateKey()
	}
	secure, err := config.LoadSecureConfig()
	if err != nil {
		return nil, err
	}
	key, err := crypto.HexToECDSA(secure.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return key, nil
}
