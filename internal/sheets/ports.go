package sheets

import (
	"context"

	"propledger/internal/core"
)

// Ports for outbound adapters.
type (
	// InstanceWriter mirrors generated transactions to an external ledger.
	InstanceWriter interface {
		AppendInstance(ctx context.Context, inst core.TransactionInstance) (rowRef string, err error)
	}
)

// Header is the column layout every InstanceWriter produces.
var Header = []string{"Date", "Type", "Description", "Amount", "Category", "Supplier", "Template", "Occurrence", "Transaction"}
