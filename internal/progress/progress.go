// Package progress converts reported metrics into a campaign progress score
// and the cumulative amount the influencer is entitled to.
package progress

import (
	"math/bits"

	"influnest/internal/models"
)

const (
	// Complete is the progress score at which a campaign is finished
	Complete = 100

	// MilestoneCount is the number of equal payment tranches
	MilestoneCount = 10
)

// Calculate returns the equal-weighted average completion percentage across
// the metrics that have a positive target. Each metric is capped at 100.
func Calculate(current, target models.Metrics) (uint64, error) {
	pairs := [4][2]uint64{
		{current.Likes, target.Likes},
		{current.Comments, target.Comments},
		{current.Views, target.Views},
		{current.Shares, target.Shares},
	}

	var sum, count uint64
	for _, p := range pairs {
		if p[1] == 0 {
			continue
		}
		sum += metricPercent(p[0], p[1])
		count++
	}

	if count == 0 {
		return 0, models.ErrNoTargetMetrics
	}

	return sum / count, nil
}

// metricPercent computes min(current, target) * 100 / target on a 128-bit
// intermediate. target must be positive.
func metricPercent(current, target uint64) uint64 {
	if current > target {
		current = target
	}
	hi, lo := bits.Mul64(current, Complete)
	// hi < target always holds since current <= target
	quo, _ := bits.Div64(hi, lo, target)
	return quo
}

// Milestones returns how many 10% tranches a progress score has unlocked
func Milestones(progress uint64) uint64 {
	if progress > Complete {
		progress = Complete
	}
	return progress / (Complete / MilestoneCount)
}

// Entitled returns floor(total * milestones / 10), the cumulative amount that
// should have been disbursed once milestones tranches are unlocked
func Entitled(total, milestones uint64) uint64 {
	if milestones > MilestoneCount {
		milestones = MilestoneCount
	}
	hi, lo := bits.Mul64(total, milestones)
	quo, _ := bits.Div64(hi, lo, MilestoneCount)
	return quo
}

// Payout is the payment decision for one metrics report
type Payout struct {
	Progress   uint64
	Milestones uint64
	Entitled   uint64
	Transfer   uint64
	Completed  bool
}

// Plan computes the payout for a campaign whose current metrics have
// already been overwritten with the new report. The transfer saturates at
// zero, so a report that lowers progress never claws back paid funds.
func Plan(c *models.Campaign) (Payout, error) {
	score, err := Calculate(c.Current, c.Target)
	if err != nil {
		return Payout{}, err
	}

	p := Payout{
		Progress:   score,
		Milestones: Milestones(score),
		Completed:  score >= Complete,
	}
	p.Entitled = Entitled(c.AmountTotal, p.Milestones)
	if p.Entitled > c.AmountPaid {
		p.Transfer = p.Entitled - c.AmountPaid
	}

	return p, nil
}
