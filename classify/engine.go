package classify

import (
	"sort"
	"strings"
	"time"
)

// Engine applies the classification rules. It holds only the threshold
// table; both Classify and ProcessEvent are pure.
type Engine struct {
	cfg Thresholds
}

// NewEngine creates an engine. Zero-value thresholds fall back to defaults.
func NewEngine(cfg Thresholds) *Engine {
	if cfg.MessageBuffer == 0 {
		cfg = DefaultThresholds
	}
	return &Engine{cfg: cfg}
}

// ProcessEvent folds one event into the profile and reclassifies.
func (e *Engine) ProcessEvent(p Profile, ev Event) Profile {
	return e.Classify(e.updateKPIs(p, ev))
}

// Classify derives the full classification vector from the profile's facts,
// KPIs and message buffer. Classify is idempotent on its own output.
func (e *Engine) Classify(p Profile) Profile {
	p.Archetype = e.archetype(p)
	p.Flags = e.flags(p)
	p.Tier = e.tier(p)
	p.State = e.state(p)
	p.BehaviorTags = e.behaviorTags(p)
	p.IntentScores = e.intentScores(p)
	p.IntentArchetype = e.intentArchetype(p)
	return p
}

// ─── KPI updates ────────────────────────────────────────────

func (e *Engine) updateKPIs(p Profile, ev Event) Profile {
	if p.FirstSeenAt.IsZero() {
		p.FirstSeenAt = ev.At
	}
	if ev.At.After(p.LastEventAt) {
		p.LastEventAt = ev.At
	}

	k := p.KPIs
	switch ev.Type {
	case EventWalletScan:
		if ev.Facts != nil {
			p.WalletFacts = *ev.Facts
		}
		k.FinancialScore = capScore(totalAssets(p.WalletFacts) / 100)
	case EventDiscordMessage:
		k.Messages++
		k.EngagementScore = capScore(k.EngagementScore + 2)
		p.RecentMessages = appendBounded(p.RecentMessages, Message{Content: ev.Message, At: ev.At}, e.cfg.MessageBuffer)
	case EventSessionStart:
		k.Sessions++
		k.EngagementScore = capScore(k.EngagementScore + 3)
	case EventAdviceFollowed:
		k.AdviceFollowed++
		k.EngagementScore = capScore(k.EngagementScore + 5)
	case EventRecommendationClicked:
		k.RecommendClicks++
		k.EngagementScore = capScore(k.EngagementScore + 3)
	case EventCommandUsed:
		k.CommandsUsed++
		k.EngagementScore = capScore(k.EngagementScore + 2)
	case EventSubscriptionUpgrade:
		k.Upgrades++
		k.EngagementScore = capScore(k.EngagementScore + 10)
		k.FinancialScore = capScore(k.FinancialScore + 10)
	case EventRetentionUpdate:
		k.RetentionScore = ev.Score
	}
	p.KPIs = k
	return p
}

// appendBounded returns a fresh slice so callers holding the old profile
// never observe the mutation.
func appendBounded(buf []Message, m Message, limit int) []Message {
	out := make([]Message, 0, len(buf)+1)
	out = append(out, buf...)
	out = append(out, m)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func capScore(v float64) float64 {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func totalAssets(f WalletFacts) float64 {
	return f.TotalUSDValue + f.TotalLPValue
}

// ─── Step 1: archetype ──────────────────────────────────────

func (e *Engine) archetype(p Profile) string {
	f := p.WalletFacts
	switch {
	case f.HeroCount == 0 && f.LPPositions == 0 && totalAssets(f) < e.cfg.DustUSD && f.TokenBalance < e.cfg.DustUSD:
		return ArchetypeGuest
	case f.HeroCount >= e.cfg.CollectorHeroFloor:
		return ArchetypeCollector
	case f.HeroCount >= e.cfg.PlayerHeroFloor:
		return ArchetypePlayer
	case f.HeroCount <= e.cfg.InvestorHeroCeil && f.TotalLPValue >= e.cfg.InvestorLPFloor:
		return ArchetypeInvestor
	case f.GardenerCount >= e.cfg.FarmerGardeners && f.LPPositions > 0:
		return ArchetypeFarmer
	default:
		return ArchetypeCasual
	}
}

// ─── Step 2: flags ──────────────────────────────────────────

func (e *Engine) flags(p Profile) Flags {
	f := p.WalletFacts
	return Flags{
		IsWhale:     totalAssets(f) >= e.cfg.WhaleUSDFloor,
		IsExtractor: f.ExtractorScore >= e.cfg.ExtractorScoreFloor,
		IsHighPotential: p.KPIs.Messages >= e.cfg.HighPotentialMsgs &&
			totalAssets(f) < e.cfg.HighPotentialUSDCeil,
	}
}

// ─── Step 3: tier ───────────────────────────────────────────

func (e *Engine) tier(p Profile) int {
	if p.TierOverride != nil {
		return clampTier(*p.TierOverride)
	}

	eng := p.KPIs.EngagementScore
	fin := p.KPIs.FinancialScore

	tier := 0
	if eng >= e.cfg.Tier1Engagement || fin >= e.cfg.Tier1Engagement {
		tier = 1
	}
	if eng >= e.cfg.Tier2Engagement && fin >= e.cfg.Tier2Financial {
		tier = 2
	}
	if eng >= e.cfg.Tier3Engagement && fin >= e.cfg.Tier3Financial {
		tier = 3
	}
	if eng >= e.cfg.Tier4Engagement && fin >= e.cfg.Tier4Financial {
		tier = 4
	}

	if e.cfg.WhaleAutoTier && p.Flags.IsWhale && tier < e.cfg.WhaleTierFloor {
		tier = e.cfg.WhaleTierFloor
	}
	return tier
}

func clampTier(t int) int {
	if t < 0 {
		return 0
	}
	if t > 4 {
		return 4
	}
	return t
}

// ─── Step 4: state ──────────────────────────────────────────

func (e *Engine) state(p Profile) string {
	r := p.KPIs.RetentionScore
	// A zero retention score means no retention update has arrived yet;
	// the churn rules only apply once one has.
	if r > 0 && r < 0.1 {
		return StateChurned
	}
	if (r > 0 && r < e.cfg.AtRiskRetention) || p.Flags.IsExtractor {
		return StateAtRisk
	}

	recent := messagesWithin(p.RecentMessages, p.LastEventAt, 7*24*time.Hour)
	switch {
	case recent >= e.cfg.EngagedMessages:
		return StateEngaged
	case recent >= e.cfg.ActiveMessages:
		return StateActive
	default:
		return StateCurious
	}
}

func messagesWithin(msgs []Message, ref time.Time, window time.Duration) int {
	if ref.IsZero() {
		return len(msgs)
	}
	cutoff := ref.Add(-window)
	n := 0
	for _, m := range msgs {
		if !m.At.Before(cutoff) {
			n++
		}
	}
	return n
}

// ─── Step 5: behavior tags ──────────────────────────────────

var (
	yieldKeywords    = []string{"apr", "yield", "farm", "emission", "harvest"}
	priceKeywords    = []string{"price", "chart", "pump", "dump", "dip"}
	riskKeywords     = []string{"safe", "risk", "rug", "stable", "impermanent"}
	sellKeywords     = []string{"sell", "exit", "cash out", "bridge out", "withdraw"}
	strategyKeywords = []string{"strategy", "optimize", "allocation", "compound", "rotate"}
	socialKeywords   = []string{"gm", "thanks", "lol", "guild", "anyone"}
)

func countKeywordHits(msgs []Message, words []string) int {
	hits := 0
	for _, m := range msgs {
		content := strings.ToLower(m.Content)
		for _, w := range words {
			if strings.Contains(content, w) {
				hits++
			}
		}
	}
	return hits
}

func countQuestions(msgs []Message) int {
	n := 0
	for _, m := range msgs {
		if strings.Contains(m.Content, "?") {
			n++
		}
	}
	return n
}

func (e *Engine) behaviorTags(p Profile) []string {
	f := p.WalletFacts
	var tags []string
	add := func(tag string, cond bool) {
		if cond {
			tags = append(tags, tag)
		}
	}

	add(TagNewcomer, f.AccountAgeDays <= e.cfg.NewcomerMaxDays)
	add(TagVeteran, f.AccountAgeDays >= e.cfg.VeteranMinDays)
	add(TagHeroCollector, f.HeroCount >= e.cfg.CollectorHeroFloor/2)
	add(TagLPProvider, f.LPPositions > 0)
	add(TagHighRoller, totalAssets(f) >= e.cfg.HighRollerUSD)
	add(TagBridger, f.BridgeOutUSD > 0)
	add(TagLurker, p.KPIs.Messages <= e.cfg.LurkerMaxMessages && p.KPIs.Sessions >= 3)

	add(TagYieldHunter, countKeywordHits(p.RecentMessages, yieldKeywords) >= e.cfg.KeywordTagFloor)
	add(TagPriceWatcher, countKeywordHits(p.RecentMessages, priceKeywords) >= e.cfg.KeywordTagFloor)
	add(TagRiskAverse, countKeywordHits(p.RecentMessages, riskKeywords) >= e.cfg.KeywordTagFloor)
	add(TagQuestionAsker, countQuestions(p.RecentMessages) >= e.cfg.KeywordTagFloor)
	add(TagSocial, countKeywordHits(p.RecentMessages, socialKeywords) >= e.cfg.KeywordTagFloor)

	sort.Strings(tags)
	return tags
}

// ─── Step 6: intent ─────────────────────────────────────────

func (e *Engine) intentScores(p Profile) IntentScores {
	f := p.WalletFacts
	axisCap := e.cfg.IntentAxisCap
	msgs := p.RecentMessages

	return IntentScores{
		PlayerOptimizer: minf(axisCap,
			float64(f.HeroCount)+
				float64(f.GardenerCount)*2+
				float64(countKeywordHits(msgs, strategyKeywords))*3+
				float64(p.KPIs.AdviceFollowed)*3),
		InvestorExtractor: minf(axisCap,
			f.BridgeOutUSD/1000+
				f.ExtractorScore*50+
				float64(countKeywordHits(msgs, sellKeywords))*5),
		SocialEngager: minf(axisCap,
			float64(p.KPIs.Messages)+
				float64(countKeywordHits(msgs, socialKeywords))*2),
		CuriousExplorer: minf(axisCap,
			float64(countQuestions(msgs))*4+
				float64(p.KPIs.CommandsUsed)*2),
		BuilderStrategist: minf(axisCap,
			float64(f.LPPositions)*3+
				float64(f.Gen0Count)*2+
				float64(countKeywordHits(msgs, strategyKeywords))*5),
	}
}

func minf(a, b float64) float64 {
	if b < a {
		return b
	}
	return a
}

func (e *Engine) intentArchetype(p Profile) string {
	f := p.WalletFacts
	// Hard overrides: heavy bridge-out or a high extractor score forces the
	// extractor intent regardless of the axis scores.
	if f.BridgeOutUSD >= e.cfg.BridgeOutOverride || f.ExtractorScore >= e.cfg.ExtractorOverride {
		return IntentInvestorExtractor
	}

	s := p.IntentScores
	axes := []struct {
		name  string
		score float64
	}{
		{IntentPlayerOptimizer, s.PlayerOptimizer},
		{IntentInvestorExtractor, s.InvestorExtractor},
		{IntentSocialEngager, s.SocialEngager},
		{IntentCuriousExplorer, s.CuriousExplorer},
		{IntentBuilderStrategist, s.BuilderStrategist},
	}
	sort.SliceStable(axes, func(i, j int) bool { return axes[i].score > axes[j].score })

	// Argmax with a minimum-difference rule: a near-tie keeps the previous
	// intent instead of flapping between axes.
	if axes[0].score-axes[1].score < e.cfg.IntentMinGap && p.IntentArchetype != "" {
		return p.IntentArchetype
	}
	if axes[0].score == 0 {
		return IntentCuriousExplorer
	}
	return axes[0].name
}
