package app

import abcitypes "github.com/cometbft/cometbft/abci/types"

// Response codes returned from CheckTx/ExecTxResult. 0 (abcitypes.CodeTypeOK)
// always means success; every other value is an application-defined failure
// reason, not part of the ABCI protocol itself.
const (
	CodeDecodeError        uint32 = iota + 1
	CodeInvalidTransaction
	CodeMempoolRejected
	CodeExecutionFailed
	CodeQueryNotFound
	CodeTooLarge
)

var _ = abcitypes.CodeTypeOK
