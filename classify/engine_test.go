package classify

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(day int) time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).AddDate(0, 0, day)
}

func newTestEngine() *Engine { return NewEngine(DefaultThresholds) }

func TestFreshGuestClassification(t *testing.T) {
	e := newTestEngine()

	p := Profile{}
	p = e.ProcessEvent(p, Event{Type: EventWalletScan, At: ts(0), Facts: &WalletFacts{}})
	p = e.ProcessEvent(p, Event{Type: EventDiscordMessage, At: ts(0), Message: "hey what is this game?"})

	assert.Equal(t, ArchetypeGuest, p.Archetype)
	assert.Equal(t, 0, p.Tier)
	assert.Equal(t, StateCurious, p.State)
	assert.True(t, p.HasTag(TagNewcomer), "tags: %v", p.BehaviorTags)
}

func TestWalletScanReclassifiesToPlayer(t *testing.T) {
	e := newTestEngine()

	p := Profile{}
	p = e.ProcessEvent(p, Event{Type: EventDiscordMessage, At: ts(0), Message: "hi"})
	p = e.ProcessEvent(p, Event{Type: EventWalletScan, At: ts(0), Facts: &WalletFacts{
		HeroCount:    15,
		LPPositions:  2,
		TotalLPValue: 6000,
	}})

	assert.Equal(t, ArchetypePlayer, p.Archetype)
	assert.GreaterOrEqual(t, p.Tier, 1)
}

func TestLowHeroHighLPIsInvestor(t *testing.T) {
	e := newTestEngine()

	p := e.ProcessEvent(Profile{}, Event{Type: EventWalletScan, At: ts(0), Facts: &WalletFacts{
		HeroCount:    3,
		LPPositions:  4,
		TotalLPValue: 8000,
	}})

	assert.Equal(t, ArchetypeInvestor, p.Archetype)
}

func TestWhaleFlagAndTierFloor(t *testing.T) {
	e := newTestEngine()

	p := e.ProcessEvent(Profile{}, Event{Type: EventWalletScan, At: ts(0), Facts: &WalletFacts{
		HeroCount:     2,
		TotalUSDValue: 80000,
	}})

	assert.True(t, p.Flags.IsWhale)
	assert.GreaterOrEqual(t, p.Tier, DefaultThresholds.WhaleTierFloor, "whales auto-floor the tier")
}

func TestExtractorOverridesIntent(t *testing.T) {
	e := newTestEngine()

	p := e.ProcessEvent(Profile{}, Event{Type: EventWalletScan, At: ts(0), Facts: &WalletFacts{
		HeroCount:      40,
		GardenerCount:  10,
		ExtractorScore: 0.9,
	}})

	assert.Equal(t, IntentInvestorExtractor, p.IntentArchetype)
	assert.True(t, p.Flags.IsExtractor)
	assert.Equal(t, StateAtRisk, p.State)
}

func TestMessageBufferBounded(t *testing.T) {
	e := newTestEngine()

	p := Profile{}
	for i := 0; i < 80; i++ {
		p = e.ProcessEvent(p, Event{
			Type:    EventDiscordMessage,
			At:      ts(0).Add(time.Duration(i) * time.Minute),
			Message: fmt.Sprintf("message %d", i),
		})
	}
	require.Len(t, p.RecentMessages, DefaultThresholds.MessageBuffer)
	assert.Equal(t, "message 79", p.RecentMessages[len(p.RecentMessages)-1].Content)
	assert.Equal(t, "message 30", p.RecentMessages[0].Content)
}

func TestKeywordTags(t *testing.T) {
	e := newTestEngine()

	p := Profile{}
	for i, msg := range []string{
		"what's the best apr right now?",
		"looking for yield on my jewel",
		"which farm should I enter?",
		"is the harvest worth it?",
	} {
		p = e.ProcessEvent(p, Event{Type: EventDiscordMessage, At: ts(0).Add(time.Duration(i) * time.Minute), Message: msg})
	}

	assert.True(t, p.HasTag(TagYieldHunter), "tags: %v", p.BehaviorTags)
	assert.True(t, p.HasTag(TagQuestionAsker), "tags: %v", p.BehaviorTags)
}

func TestRetentionDrivesState(t *testing.T) {
	e := newTestEngine()

	p := e.ProcessEvent(Profile{}, Event{Type: EventRetentionUpdate, At: ts(0), Score: 0.05})
	assert.Equal(t, StateChurned, p.State)

	p = e.ProcessEvent(p, Event{Type: EventRetentionUpdate, At: ts(1), Score: 0.2})
	assert.Equal(t, StateAtRisk, p.State)
}

// Classify is idempotent on its own output for a spread of event histories.
func TestClassifyIdempotent(t *testing.T) {
	e := newTestEngine()

	histories := [][]Event{
		{
			{Type: EventWalletScan, At: ts(0), Facts: &WalletFacts{HeroCount: 15, TotalLPValue: 6000}},
			{Type: EventDiscordMessage, At: ts(0), Message: "best apr?"},
		},
		{
			{Type: EventSessionStart, At: ts(0)},
			{Type: EventCommandUsed, At: ts(0)},
			{Type: EventWalletScan, At: ts(1), Facts: &WalletFacts{BridgeOutUSD: 20000}},
		},
		{
			{Type: EventRetentionUpdate, At: ts(0), Score: 0.9},
			{Type: EventSubscriptionUpgrade, At: ts(2)},
		},
	}

	for i, history := range histories {
		p := Profile{}
		for _, ev := range history {
			p = e.ProcessEvent(p, ev)
		}
		again := e.Classify(p)
		assert.Equal(t, p, again, "history %d", i)
	}
}

// ProcessEvent must not mutate its input profile.
func TestProcessEventPurity(t *testing.T) {
	e := newTestEngine()

	p := e.ProcessEvent(Profile{}, Event{Type: EventDiscordMessage, At: ts(0), Message: "first"})
	snapshot := p.RecentMessages[0].Content

	_ = e.ProcessEvent(p, Event{Type: EventDiscordMessage, At: ts(1), Message: "second"})
	assert.Equal(t, snapshot, p.RecentMessages[0].Content)
	assert.Len(t, p.RecentMessages, 1, "input profile's buffer must be untouched")
}
