package categorizer

import "fjacquet/mail-ledger/internal/models"

// Strategy is one way of assigning a category to a transaction record.
// Strategies are consulted in order; the first hit wins.
type Strategy interface {
	// Categorize returns the category and whether this strategy matched.
	Categorize(rec models.TransactionRecord) (string, bool)

	// Name identifies the strategy in logs.
	Name() string
}
