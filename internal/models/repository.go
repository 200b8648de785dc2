package models

// Repository is the ledger of issued challenges. It is advisory: token
// validity is decided from the token itself and the payment backend, the
// ledger only records what was issued and when payments were first observed.
type Repository interface {
	AddChallenge(challenge *Challenge) error
	GetChallenge(paymentHash string) (*Challenge, error)

	// MarkSettled records the first observed settlement for the given
	// payment hash. Subsequent calls are no-ops.
	MarkSettled(paymentHash string, settledAt int64) error

	// CountChallenges returns the total number of issued challenges and
	// how many of them have settled.
	CountChallenges() (total int64, settled int64, err error)

	RemoveExpiredChallenges(before int64) error
}
