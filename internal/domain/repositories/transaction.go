package repositories

import "context"

// TxFn runs inside a transaction; ctx carries it (see GetTx)
type TxFn func(ctx context.Context) error

// TransactionManager runs multi-statement writes atomically, such as
// reassigning a folder's canvases before deleting the folder.
type TransactionManager interface {
	// ExecTx runs fn in a transaction, committing when fn returns nil
	ExecTx(ctx context.Context, fn TxFn) error
}
