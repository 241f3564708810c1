package ledger

import "fmt"

// Intent record text. These strings are the durable audit trail: they
// are appended before validation and describe the attempt, not the
// outcome. A MultiDebit logs one record carrying the aggregate sum.

func balanceIntent(acct string) []byte {
	return []byte("Balance:" + acct)
}

func creditIntent(acct string, amount int64) []byte {
	return fmt.Appendf(nil, "Credit:%s %d", acct, amount)
}

func debitIntent(acct string, amount int64) []byte {
	return fmt.Appendf(nil, "Debit:%s %d", acct, amount)
}

func multiDebitIntent(acct string, sum int64) []byte {
	return fmt.Appendf(nil, "MultiDebit:%s %d", acct, sum)
}
