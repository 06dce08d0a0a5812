package optimizer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Report is the JSON payload stored on the completed job.
type Report struct {
	Current     CurrentState `json:"current"`
	Plan        Plan         `json:"plan"`
	Improvement Improvement  `json:"improvement"`
}

// RenderMessages renders the three outbound chunks: current state,
// recommendation, math breakdown. Each is chunked again at the transport's
// character cap before sending.
func RenderMessages(r Report) []string {
	return []string{
		renderCurrent(r.Current),
		renderPlan(r.Plan),
		renderMath(r),
	}
}

func renderCurrent(c CurrentState) string {
	var b strings.Builder
	b.WriteString("**Garden Report — where you stand**\n\n")
	fmt.Fprintf(&b, "Heroes: %d (%d with the gardening gene, %d currently questing)\n",
		c.HeroCount, c.Gardeners, c.QuestingHeroes)
	fmt.Fprintf(&b, "LP positions: %d worth $%s\n", c.PositionCount, c.LPValueUSD.StringFixed(2))
	if c.EstimatedAPR.IsPositive() {
		fmt.Fprintf(&b, "Estimated current quest APR: %s%%\n", c.EstimatedAPR.StringFixed(2))
	} else {
		b.WriteString("Estimated current quest APR: none — your gardens are idle\n")
	}
	return b.String()
}

func renderPlan(p Plan) string {
	var b strings.Builder
	b.WriteString("**Recommended assignments**\n\n")
	if len(p.Assignments) == 0 {
		b.WriteString("No assignment improves on your current setup right now.\n")
		return b.String()
	}
	for _, a := range p.Assignments {
		fmt.Fprintf(&b, "• Hero #%d → %s (%s), expected %s%%\n",
			a.HeroID, a.Pair, a.Chain, a.ExpectedAPR.StringFixed(2))
	}
	fmt.Fprintf(&b, "\nAverage expected quest APR: %s%%\n", p.AverageAPR.StringFixed(2))
	return b.String()
}

func renderMath(r Report) string {
	var b strings.Builder
	b.WriteString("**The math**\n\n")
	fmt.Fprintf(&b, "Current estimated APR: %s%%\n", r.Current.EstimatedAPR.StringFixed(2))
	fmt.Fprintf(&b, "Optimized average APR: %s%%\n", r.Plan.AverageAPR.StringFixed(2))
	fmt.Fprintf(&b, "Improvement: +%s%% APR\n", r.Improvement.DeltaAPR.StringFixed(2))
	fmt.Fprintf(&b, "On $%s of LP that is roughly $%s more per year.\n",
		r.Current.LPValueUSD.StringFixed(2), r.Improvement.AnnualUSDExtra.StringFixed(2))
	if r.Improvement.DeltaAPR.Equal(decimal.Zero) {
		b.WriteString("\nYour current setup is already near the optimum — nice gardening.\n")
	}
	return b.String()
}
