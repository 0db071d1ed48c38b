package harness

// State is the single mutable record threaded through every step of a run.
// A later step may only read fields a strictly earlier step wrote; the
// sequential, non-reentrant runner is what enforces that ordering, not
// locking. Steps mutate the record in place; there is no rollback.
type State struct {
	// Onboarding outputs.
	Password   string
	SeedPhrase []string

	// Account selected/created during the run.
	AccountName    string
	AccountAddress string

	// Dapp-driven outputs.
	ContractAddress string
	TokenAddress    string
	TokenSymbol     string

	// ActivityBaseline is the extension's activity-item count recorded
	// before the dapp-initiated sends, so the count assertion tolerates
	// entries left by earlier groups.
	ActivityBaseline int

	// DappURL is where the local third-party page is served.
	DappURL string
}
