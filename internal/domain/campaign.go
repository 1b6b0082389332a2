package domain

// CampaignRun is the persisted outcome of one guarded campaign.
type CampaignRun struct {
	RunID       string
	StrategyID  string
	Symbol      string
	FromMs      int64
	ToMs        int64
	Seed        uint64
	Passed      bool
	Reason      string // empty when passed
	MetricsJSON []byte // serialized campaign metrics
	CreatedAtMs int64
}
