package domain

// RemainingBalance derives the unallocated portion of a charge or payment
// from its recorded closing balances. With no transactions the full amount is
// open; otherwise the smallest closing balance wins, since closings are
// monotonically non-increasing as allocations accrue.
func RemainingBalance(amount int64, closings []int64) int64 {
	if len(closings) == 0 {
		return amount
	}
	minClosing := closings[0]
	for _, c := range closings[1:] {
		if c < minClosing {
			minClosing = c
		}
	}
	return minClosing
}

// ChargeRemaining derives a charge's balance from its transactions.
func ChargeRemaining(c Charge, txns []Transaction) int64 {
	closings := make([]int64, 0, len(txns))
	for _, txn := range txns {
		if txn.ChargeID == c.ID {
			closings = append(closings, txn.ChargeClosingBalance)
		}
	}
	return RemainingBalance(c.Amount, closings)
}

// PaymentRemaining derives a payment's balance from its transactions.
func PaymentRemaining(p Payment, txns []Transaction) int64 {
	closings := make([]int64, 0, len(txns))
	for _, txn := range txns {
		if txn.PaymentID == p.ID {
			closings = append(closings, txn.PaymentClosingBalance)
		}
	}
	return RemainingBalance(p.Amount, closings)
}
