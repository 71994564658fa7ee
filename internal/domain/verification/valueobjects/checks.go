package valueobjects

// Check names as surfaced to dashboards and stored in verification_checks.
const (
	CheckNoDuplicates      = "no_duplicates"
	CheckTransactionExists = "transaction_exists"
	CheckSenderVerified    = "sender_verified"
	CheckRecipientVerified = "recipient_verified"
	CheckAmountVerified    = "amount_verified"
	CheckConfirmed         = "confirmed"
	CheckTimeValid         = "time_valid"
)

// CheckSet holds the seven named boolean verification checks.
// blockchain_verified may only be true when every check is true.
type CheckSet struct {
	NoDuplicates      bool `json:"no_duplicates"`
	TransactionExists bool `json:"transaction_exists"`
	SenderVerified    bool `json:"sender_verified"`
	RecipientVerified bool `json:"recipient_verified"`
	AmountVerified    bool `json:"amount_verified"`
	Confirmed         bool `json:"confirmed"`
	TimeValid         bool `json:"time_valid"`
}

// AllPassed reports whether every check is true.
func (c CheckSet) AllPassed() bool {
	return c.NoDuplicates &&
		c.TransactionExists &&
		c.SenderVerified &&
		c.RecipientVerified &&
		c.AmountVerified &&
		c.Confirmed &&
		c.TimeValid
}

// Map returns the checks keyed by their wire names.
func (c CheckSet) Map() map[string]bool {
	return map[string]bool{
		CheckNoDuplicates:      c.NoDuplicates,
		CheckTransactionExists: c.TransactionExists,
		CheckSenderVerified:    c.SenderVerified,
		CheckRecipientVerified: c.RecipientVerified,
		CheckAmountVerified:    c.AmountVerified,
		CheckConfirmed:         c.Confirmed,
		CheckTimeValid:         c.TimeValid,
	}
}

// FailedNames returns the names of failed checks in a stable order.
func (c CheckSet) FailedNames() []string {
	ordered := []struct {
		name   string
		passed bool
	}{
		{CheckNoDuplicates, c.NoDuplicates},
		{CheckTransactionExists, c.TransactionExists},
		{CheckSenderVerified, c.SenderVerified},
		{CheckRecipientVerified, c.RecipientVerified},
		{CheckAmountVerified, c.AmountVerified},
		{CheckConfirmed, c.Confirmed},
		{CheckTimeValid, c.TimeValid},
	}

	var failed []string
	for _, entry := range ordered {
		if !entry.passed {
			failed = append(failed, entry.name)
		}
	}
	return failed
}
