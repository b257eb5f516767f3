package backtest

import (
	"math"
	"time"

	"marketcore/internal/corekit"
	"marketcore/internal/domain"
)

// portfolioState is the mutable book the event loop executes orders
// against: cash plus open positions, keyed by symbol.
type portfolioState struct {
	cash      float64
	positions map[string]*domain.Position
}

func newPortfolioState(initialCapital float64) *portfolioState {
	return &portfolioState{
		cash:      initialCapital,
		positions: make(map[string]*domain.Position),
	}
}

func (p *portfolioState) totalValue() float64 {
	total := p.cash
	for _, pos := range p.positions {
		total += pos.MarketValue
	}
	return total
}

// buyBudgetFraction is the fraction of available cash an order may consume
// when rescaling down for insufficient funds, per spec §4.3 ("rescale
// quantity downward using 99% of cash as budget").
const buyBudgetFraction = 0.99

// executeBuy fills a BUY order against the cost model, rescaling quantity
// down if cash is insufficient, and updates (or opens) the position with a
// weighted-average entry price.
func (p *portfolioState) executeBuy(symbol string, quantity int64, price float64, marketVolume float64, model domain.TransactionCostModel, now time.Time, signalStrength float64, nextTradeID func() string) (*domain.Trade, error) {
	if quantity <= 0 {
		return nil, nil
	}

	qty := quantity
	cost := ComputeCost(model, qty, price, marketVolume)
	executedPrice := ExecutedPrice(domain.SideBuy, price, cost.Slippage, qty)
	notional := float64(qty) * executedPrice

	if p.cash < notional+cost.Total() {
		budget := p.cash * buyBudgetFraction
		qty = rescaleQuantity(budget, price, model, marketVolume)
		if qty <= 0 {
			return nil, nil
		}
		cost = ComputeCost(model, qty, price, marketVolume)
		executedPrice = ExecutedPrice(domain.SideBuy, price, cost.Slippage, qty)
		notional = float64(qty) * executedPrice
	}

	total := notional + cost.Total()
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return nil, corekit.Numericalf("cost model produced a non-finite total cost for %s buy", symbol)
	}
	if total > p.cash+1e-6 {
		return nil, nil
	}

	p.cash -= total
	if existing, ok := p.positions[symbol]; ok {
		totalQty := existing.Quantity + qty
		weightedCost := (existing.EntryPrice*float64(existing.Quantity) + executedPrice*float64(qty)) / float64(totalQty)
		existing.EntryPrice = weightedCost
		existing.Quantity = totalQty
	} else {
		p.positions[symbol] = &domain.Position{
			Symbol:     symbol,
			Quantity:   qty,
			EntryPrice: executedPrice,
			EntryDate:  now,
		}
	}

	return &domain.Trade{
		ID:             nextTradeID(),
		Symbol:         symbol,
		Side:           domain.SideBuy,
		Quantity:       qty,
		ExecutedPrice:  executedPrice,
		Timestamp:      now,
		Commission:     cost.Commission,
		Slippage:       cost.Slippage,
		MarketImpact:   cost.MarketImpact,
		SignalStrength: signalStrength,
	}, nil
}

// rescaleQuantity finds the largest integer quantity whose notional plus
// cost fits within budget, via simple downward search from the
// budget-implied estimate (cost model is monotone increasing in quantity).
func rescaleQuantity(budget, price float64, model domain.TransactionCostModel, marketVolume float64) int64 {
	if price <= 0 || budget <= 0 {
		return 0
	}
	estimate := int64(budget / price)
	for estimate > 0 {
		cost := ComputeCost(model, estimate, price, marketVolume)
		executedPrice := ExecutedPrice(domain.SideBuy, price, cost.Slippage, estimate)
		notional := float64(estimate) * executedPrice
		if notional+cost.Total() <= budget {
			return estimate
		}
		estimate--
	}
	return 0
}

// executeSell fills a SELL order for up to the held quantity, realising
// PnL against the position's entry price. Partial sells leave the entry
// price unchanged for the residual.
func (p *portfolioState) executeSell(symbol string, quantity int64, price float64, marketVolume float64, model domain.TransactionCostModel, now time.Time, signalStrength float64, nextTradeID func() string) (*domain.Trade, error) {
	pos, ok := p.positions[symbol]
	if !ok || pos.Quantity <= 0 || quantity <= 0 {
		return nil, nil
	}
	qty := quantity
	if qty > pos.Quantity {
		qty = pos.Quantity
	}

	cost := ComputeCost(model, qty, price, marketVolume)
	executedPrice := ExecutedPrice(domain.SideSell, price, cost.Slippage, qty)
	notional := float64(qty) * executedPrice
	proceeds := notional - cost.Total()
	if math.IsNaN(proceeds) || math.IsInf(proceeds, 0) {
		return nil, corekit.Numericalf("cost model produced a non-finite total cost for %s sell", symbol)
	}

	realizedPnL := (executedPrice - pos.EntryPrice) * float64(qty)
	returnPct := 0.0
	if pos.EntryPrice > 0 {
		returnPct = realizedPnL / (pos.EntryPrice * float64(qty))
	}

	p.cash += proceeds
	pos.Quantity -= qty
	if pos.Quantity == 0 {
		delete(p.positions, symbol)
	}

	return &domain.Trade{
		ID:             nextTradeID(),
		Symbol:         symbol,
		Side:           domain.SideSell,
		Quantity:       qty,
		ExecutedPrice:  executedPrice,
		Timestamp:      now,
		Commission:     cost.Commission,
		Slippage:       cost.Slippage,
		MarketImpact:   cost.MarketImpact,
		SignalStrength: signalStrength,
		RealizedPnL:    &realizedPnL,
		ReturnPct:      &returnPct,
	}, nil
}

// markToMarket updates every open position's current_price, market_value,
// unrealized_pnl and weight, per spec §4.3 step 4. Prices are refreshed
// first so the total used for weighting reflects today's marks, not
// yesterday's.
func (p *portfolioState) markToMarket(closes map[string]float64) {
	for sym, pos := range p.positions {
		if price, ok := closes[sym]; ok {
			pos.CurrentPrice = price
		}
		pos.MarketValue = float64(pos.Quantity) * pos.CurrentPrice // refreshed before totalling, recomputed below
	}
	total := p.totalValue()
	for _, pos := range p.positions {
		pos.Recompute(pos.CurrentPrice, total)
	}
}
