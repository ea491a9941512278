// Package ledger holds the pure money and time rules of the booking ledger
// and the subscription renewal engine.  Nothing here touches storage; the
// service layer applies these rules inside its transactions.
//
// All amounts are integer paise.
package ledger
