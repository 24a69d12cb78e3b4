package models

// PrincipalID identifies an authenticated caller or a custody account.
type PrincipalID string

// Config is the pool's singleton configuration record.
type Config struct {
	Admin         PrincipalID `json:"admin"`
	RoundSequence uint64      `json:"roundSequence"`
	Asset         string      `json:"asset"`
}

// State is everything the pool owns. A nil Config means the pool was never
// initialized.
type State struct {
	Config  *Config
	Round   *Round
	Winners *WinnerRegistry
}

// NewState returns the state of a freshly initialized pool.
func NewState(admin PrincipalID, asset string) *State {
	return &State{
		Config:  &Config{Admin: admin, Asset: asset},
		Round:   NewRound(),
		Winners: NewWinnerRegistry(),
	}
}
