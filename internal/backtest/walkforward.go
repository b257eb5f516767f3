package backtest

import (
	"context"
	"math"
	"time"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
	"marketcore/internal/riskmetrics"
)

// epsilon avoids a zero-over-zero overfitting score when both Sharpes are
// exactly zero (e.g. a degenerate window with no trades).
const overfittingEpsilon = 1e-9

// RunWalkForward partitions [cfg.StartDate, cfg.EndDate] into rolling
// train/test windows per cfg.WalkForward, runs the strategy (optionally
// re-optimised per window) on each test window, and stitches the results.
// Per the recorded Open Question decision, a WalkForwardConfig with
// EnableOptimization set but no ParamGrid falls back to a single-window run
// over the full period with FellBackToSingleWindow=true.
func RunWalkForward(ctx context.Context, cfg domain.BacktestConfig, panel *domain.PricePanel, indicatorPanel *domain.IndicatorPanel, benchmarkReturns []float64, sink ProgressSink) (*WalkForwardResult, error) {
	wf := cfg.WalkForward
	if wf == nil {
		return nil, corekit.Validationf("RunWalkForward requires a non-nil WalkForwardConfig")
	}
	if wf.EnableOptimization && len(wf.ParamGrid) == 0 {
		single, err := Run(ctx, cfg, panel, indicatorPanel, benchmarkReturns, sink)
		if err != nil {
			return nil, err
		}
		return &WalkForwardResult{
			Stitched:               *single,
			FellBackToSingleWindow: true,
		}, nil
	}

	windows := partitionWindows(cfg.StartDate, cfg.EndDate, wf.TrainDays, wf.TestDays, wf.StepDays)
	if len(windows) == 0 {
		single, err := Run(ctx, cfg, panel, indicatorPanel, benchmarkReturns, sink)
		if err != nil {
			return nil, err
		}
		return &WalkForwardResult{Stitched: *single, FellBackToSingleWindow: true}, nil
	}

	var windowResults []WindowResult
	var stitchedEquity []domain.PortfolioSnapshot
	var stitchedTrades []domain.Trade
	var trainSharpes, testSharpes []float64

	for i, w := range windows {
		select {
		case <-ctx.Done():
			return nil, corekit.NewError(corekit.ErrCancelled, "walk-forward run cancelled", nil)
		default:
		}

		trainCfg := cfg
		trainCfg.StartDate, trainCfg.EndDate = w.trainStart, w.trainEnd
		bestStrategy := cfg.Strategy
		var trainSharpe float64
		if wf.EnableOptimization {
			bestStrategy, trainSharpe = optimizeOnWindow(ctx, trainCfg, wf.ParamGrid, panel, indicatorPanel, objectiveOrDefault(wf.Objective))
		} else {
			trainResult, err := Run(ctx, trainCfg, panel, indicatorPanel, nil, nil)
			if err == nil && len(trainResult.EquityCurve) > 0 {
				trainSharpe = riskmetrics.Sharpe(dailyReturnsOf(trainResult.EquityCurve), 0)
			}
		}

		testCfg := cfg
		testCfg.Strategy = bestStrategy
		testCfg.StartDate, testCfg.EndDate = w.testStart, w.testEnd
		testResult, err := Run(ctx, testCfg, panel, indicatorPanel, benchmarkReturns, sink)
		if err != nil {
			return nil, err
		}
		testSharpe := riskmetrics.Sharpe(dailyReturnsOf(testResult.EquityCurve), 0)

		windowResults = append(windowResults, WindowResult{
			TrainSharpe: trainSharpe,
			TestSharpe:  testSharpe,
			TestResult:  *testResult,
			BestParams:  &bestStrategy,
		})
		trainSharpes = append(trainSharpes, trainSharpe)
		testSharpes = append(testSharpes, testSharpe)
		stitchedEquity = append(stitchedEquity, testResult.EquityCurve...)
		stitchedTrades = append(stitchedTrades, testResult.Trades...)

		if sink != nil {
			sink.Report(float64(i+1)/float64(len(windows)), "walk-forward window complete")
		}
	}

	return &WalkForwardResult{
		Windows: windowResults,
		Stitched: Result{
			Metrics:       riskmetrics.Aggregate(stitchedEquity, stitchedTrades, benchmarkReturns, 0),
			EquityCurve:   stitchedEquity,
			Trades:        stitchedTrades,
			BenchmarkUsed: len(benchmarkReturns) > 0,
		},
		OverfittingScore: overfittingScore(corekit.Mean(trainSharpes), corekit.Mean(testSharpes)),
	}, nil
}

// overfittingScore implements SPEC_FULL.md's supplemented formula:
// clamp((trainSharpe-testSharpe)/(|trainSharpe|+|testSharpe|+ε), 0, 1).
func overfittingScore(trainSharpe, testSharpe float64) float64 {
	denom := math.Abs(trainSharpe) + math.Abs(testSharpe) + overfittingEpsilon
	return corekit.Clamp((trainSharpe-testSharpe)/denom, 0, 1)
}

func objectiveOrDefault(objective string) string {
	if objective == "" {
		return "sharpe"
	}
	return objective
}

// optimizeOnWindow runs each ParamGrid candidate over the training window
// and returns the best by objective (currently only "sharpe" is supported;
// any other value also ranks by Sharpe, since no other objective is wired).
func optimizeOnWindow(ctx context.Context, trainCfg domain.BacktestConfig, grid []domain.TradingStrategy, panel *domain.PricePanel, indicatorPanel *domain.IndicatorPanel, objective string) (domain.TradingStrategy, float64) {
	var best domain.TradingStrategy
	bestScore := math.Inf(-1)
	for _, candidate := range grid {
		candCfg := trainCfg
		candCfg.Strategy = candidate
		result, err := Run(ctx, candCfg, panel, indicatorPanel, nil, nil)
		if err != nil || len(result.EquityCurve) == 0 {
			continue
		}
		score := riskmetrics.Sharpe(dailyReturnsOf(result.EquityCurve), 0)
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}
	if math.IsInf(bestScore, -1) {
		return trainCfg.Strategy, 0
	}
	return best, bestScore
}

func dailyReturnsOf(equity []domain.PortfolioSnapshot) []float64 {
	out := make([]float64, 0, len(equity))
	for i, snap := range equity {
		if i == 0 {
			continue
		}
		out = append(out, snap.DailyReturnPct)
	}
	return out
}

type window struct {
	trainStart, trainEnd time.Time
	testStart, testEnd   time.Time
}

// partitionWindows builds rolling (train,test) windows of trainDays/testDays
// calendar days, advancing by stepDays, until the window would run past end.
func partitionWindows(start, end time.Time, trainDays, testDays, stepDays int) []window {
	if trainDays <= 0 || testDays <= 0 || stepDays <= 0 {
		return nil
	}
	var windows []window
	cursor := start
	for {
		trainEnd := cursor.AddDate(0, 0, trainDays)
		testEnd := trainEnd.AddDate(0, 0, testDays)
		if testEnd.After(end) {
			break
		}
		windows = append(windows, window{
			trainStart: cursor, trainEnd: trainEnd,
			testStart: trainEnd, testEnd: testEnd,
		})
		cursor = cursor.AddDate(0, 0, stepDays)
	}
	return windows
}
