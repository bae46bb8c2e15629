/*
rank.go - Partner loyalty tiers

PURPOSE:
  A partner is always in exactly one Rank. The rank decides two things:
    1. The payment curve: what a sale is worth given how early or late it
       is paid (delay = current date - deadline).
    2. What happens to points and tier when a sale is paid.

PAYMENT CURVES (N = product periodN):

  Normal:
    delay <= -N        x0.90
    delay <= 0         x1.00
    delay <= N         x(1 + 0.05*delay)
    otherwise          x(1 + 0.10*delay)

  Selection:
    delay <= -N        x0.90
    delay <= -2        x0.95
    delay <= 1         x1.00
    delay <= N         x(1 + 0.02*delay)
    otherwise          x(1 + 0.05*delay)

  Elite:
    delay <= 0         x0.90
    delay <= N         x0.95
    otherwise          x1.00

TRANSITIONS:
  Normal    -> Selection  points > 2000
  Normal    -> Elite      points > 25000 (wins over Selection)
  Selection -> Elite      points > 25000
  Selection -> Normal     paid more than 2 days late, keeps 10% of points
  Elite     -> Selection  paid more than 15 days late, keeps 25% of points

  On-time payments (delay <= 0) earn 10 points per unit of value paid.
  A late payment wipes a Normal partner's points.
*/
package warehouse

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Rank is a partner's loyalty tier.
type Rank int

const (
	RankNormal Rank = iota
	RankSelection
	RankElite
)

var (
	selectionThreshold = decimal.NewFromInt(2000)
	eliteThreshold     = decimal.NewFromInt(25000)

	selectionDemotionKeep = decimal.NewFromFloat(0.1)
	eliteDemotionKeep     = decimal.NewFromFloat(0.25)

	factorDiscountHigh = decimal.NewFromFloat(0.90)
	factorDiscountLow  = decimal.NewFromFloat(0.95)
)

const (
	selectionDemotionDelay = 2
	eliteDemotionDelay     = 15
)

func (r Rank) String() string {
	switch r {
	case RankSelection:
		return "SELECTION"
	case RankElite:
		return "ELITE"
	default:
		return "NORMAL"
	}
}

// ParseRank parses the String form of a rank.
func ParseRank(s string) (Rank, error) {
	switch s {
	case "NORMAL":
		return RankNormal, nil
	case "SELECTION":
		return RankSelection, nil
	case "ELITE":
		return RankElite, nil
	}
	return RankNormal, fmt.Errorf("unknown rank %q", s)
}

// RealValue applies the rank's payment curve to a sale's base value.
func (r Rank) RealValue(base Money, delay, periodN int) Money {
	return base.Mul(r.factor(delay, periodN))
}

func (r Rank) factor(delay, periodN int) Money {
	d := decimal.NewFromInt(int64(delay))
	surcharge := func(rate string) Money {
		return one.Add(decimal.RequireFromString(rate).Mul(d))
	}

	switch r {
	case RankSelection:
		switch {
		case delay <= -periodN:
			return factorDiscountHigh
		case delay <= -2:
			return factorDiscountLow
		case delay <= 1:
			return one
		case delay <= periodN:
			return surcharge("0.02")
		default:
			return surcharge("0.05")
		}
	case RankElite:
		switch {
		case delay <= 0:
			return factorDiscountHigh
		case delay <= periodN:
			return factorDiscountLow
		default:
			return one
		}
	default:
		switch {
		case delay <= -periodN:
			return factorDiscountHigh
		case delay <= 0:
			return one
		case delay <= periodN:
			return surcharge("0.05")
		default:
			return surcharge("0.10")
		}
	}
}

// =============================================================================
// POINTS AND TRANSITIONS
// =============================================================================

// registerSalePayment updates p's points and rank for a sale paid with the
// given delay and real value.
func (r Rank) registerSalePayment(p *Partner, delay int, real Money) {
	switch r {
	case RankNormal:
		if delay <= 0 {
			p.points = p.points.Add(real.Mul(ten))
		} else {
			p.points = zero
		}
		r.onPointsChange(p)
	case RankSelection:
		if delay <= 0 {
			p.points = p.points.Add(real.Mul(ten))
			r.onPointsChange(p)
		} else if delay > selectionDemotionDelay {
			p.points = p.points.Mul(selectionDemotionKeep)
			p.rank = RankNormal
		}
	case RankElite:
		if delay <= 0 {
			p.points = p.points.Add(real.Mul(ten))
		} else if delay > eliteDemotionDelay {
			p.points = p.points.Mul(eliteDemotionKeep)
			p.rank = RankSelection
		}
	}
}

// onPointsChange promotes p when its points cross a threshold.
func (r Rank) onPointsChange(p *Partner) {
	switch r {
	case RankNormal:
		if p.points.GreaterThan(eliteThreshold) {
			p.rank = RankElite
		} else if p.points.GreaterThan(selectionThreshold) {
			p.rank = RankSelection
		}
	case RankSelection:
		if p.points.GreaterThan(eliteThreshold) {
			p.rank = RankElite
		}
	}
}
