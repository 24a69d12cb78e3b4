package models

// DepositReceipt describes a recorded deposit.
type DepositReceipt struct {
	Depositor  PrincipalID `json:"depositor"`
	Amount     uint64      `json:"amount"`
	Stake      uint64      `json:"stake"`
	RoundTotal uint64      `json:"roundTotal"`
}

// DrawReceipt links a drawn round to its winner and prize.
type DrawReceipt struct {
	Round  uint64      `json:"round"`
	Winner PrincipalID `json:"winner"`
	Prize  uint64      `json:"prize"`
	Owed   uint64      `json:"owed"` // winner's unclaimed total after this draw
}

// ClaimReceipt records how a claimed prize was split.
type ClaimReceipt struct {
	Winner PrincipalID `json:"winner"`
	Amount uint64      `json:"amount"`
	Fee    uint64      `json:"fee"`
	Payout uint64      `json:"payout"`
}

// WithdrawReceipt records an operator withdrawal from the prize vault.
type WithdrawReceipt struct {
	To        PrincipalID `json:"to"`
	Amount    uint64      `json:"amount"`
	Remaining uint64      `json:"remaining"` // prize vault balance afterwards
}
