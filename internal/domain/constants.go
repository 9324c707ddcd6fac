package domain

const (
	CurrencyINR = "INR"

	TxTypeCredit = "CREDIT"
	TxTypeDebit  = "DEBIT"

	TxStatusPending = "PENDING"
	TxStatusSuccess = "SUCCESS"
	TxStatusFailed  = "FAILED"

	DescriptionRecharge = "Wallet Recharge"
)

// IsTerminalStatus reports whether a transaction status can no longer change.
func IsTerminalStatus(status string) bool {
	return status == TxStatusSuccess || status == TxStatusFailed
}
