package classify

// Thresholds is the single tunable constant set behind every classification
// rule. Adjusting behavior means editing data here, never logic.
type Thresholds struct {
	// Archetype
	PlayerHeroFloor    int     // heroes at or above → PLAYER
	CollectorHeroFloor int     // heroes at or above → COLLECTOR
	InvestorHeroCeil   int     // heroes at or below with LP → INVESTOR
	InvestorLPFloor    float64 // USD
	FarmerGardeners    int
	DustUSD            float64 // balances below count as zero

	// Flags
	WhaleUSDFloor        float64
	ExtractorScoreFloor  float64
	HighPotentialMsgs    int
	HighPotentialUSDCeil float64

	// Tier steps on (engagement, financial)
	Tier1Engagement float64
	Tier2Engagement float64
	Tier2Financial  float64
	Tier3Engagement float64
	Tier3Financial  float64
	Tier4Engagement float64
	Tier4Financial  float64
	WhaleTierFloor  int  // whales never classify below this tier
	WhaleAutoTier   bool // gate for the whale tier floor

	// State
	ChurnedAfterDays int
	AtRiskRetention  float64
	EngagedMessages  int
	ActiveMessages   int

	// Behavior tags
	NewcomerMaxDays   int
	VeteranMinDays    int
	KeywordTagFloor   int // keyword hits in recent messages to earn a tag
	HighRollerUSD     float64
	LurkerMaxMessages int

	// Intent
	IntentAxisCap     float64
	IntentMinGap      float64
	BridgeOutOverride float64 // USD of bridge-out forcing INVESTOR_EXTRACTOR
	ExtractorOverride float64

	MessageBuffer int
}

// DefaultThresholds is the shipped tuning (most recent config version; all
// earlier variants superseded).
var DefaultThresholds = Thresholds{
	PlayerHeroFloor:    11,
	CollectorHeroFloor: 50,
	InvestorHeroCeil:   5,
	InvestorLPFloor:    2500,
	FarmerGardeners:    3,
	DustUSD:            1,

	WhaleUSDFloor:        50000,
	ExtractorScoreFloor:  0.7,
	HighPotentialMsgs:    25,
	HighPotentialUSDCeil: 100,

	Tier1Engagement: 10,
	Tier2Engagement: 30,
	Tier2Financial:  20,
	Tier3Engagement: 60,
	Tier3Financial:  50,
	Tier4Engagement: 85,
	Tier4Financial:  80,
	WhaleTierFloor:  3,
	WhaleAutoTier:   true,

	ChurnedAfterDays: 30,
	AtRiskRetention:  0.3,
	EngagedMessages:  20,
	ActiveMessages:   5,

	NewcomerMaxDays:   14,
	VeteranMinDays:    180,
	KeywordTagFloor:   3,
	HighRollerUSD:     25000,
	LurkerMaxMessages: 2,

	IntentAxisCap:     100,
	IntentMinGap:      5,
	BridgeOutOverride: 10000,
	ExtractorOverride: 0.85,

	MessageBuffer: 50,
}
