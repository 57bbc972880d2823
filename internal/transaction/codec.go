package transaction

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/astria-net/sequencer-core/internal/actions"
	"github.com/astria-net/sequencer-core/internal/fees"
	"github.com/astria-net/sequencer-core/internal/primitive"
)

// MaxEncodedSize is the largest encoded transaction Unmarshal will accept,
// per the chain-wide transaction size limit: 256_000 bytes is fine,
// 256_001 is TooLarge.
const MaxEncodedSize = 256_000

// ErrTooLarge is returned by Unmarshal when data exceeds MaxEncodedSize.
var ErrTooLarge = errors.New("transaction exceeds the maximum encoded size of 256000 bytes")

// actionEnvelope tags a polymorphic action payload with its kind so it can
// round-trip through JSON, the same kind-tagged-payload idiom the teacher's
// bao_client.go uses for its OpenBao HTTP requests. No protobuf schema is
// generated in this tree (see Body.SigningBytes), so this envelope is the
// wire format CheckTx and PrepareProposal/ProcessProposal/FinalizeBlock
// decode transaction bytes through.
type actionEnvelope struct {
	Kind    fees.ActionKind `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type wireTransaction struct {
	Signature       [64]byte         `json:"signature"`
	VerificationKey [32]byte         `json:"verification_key"`
	ChainID         string           `json:"chain_id"`
	Nonce           uint32           `json:"nonce"`
	Actions         []actionEnvelope `json:"actions"`
}

// Marshal encodes tx to its wire representation.
func Marshal(tx Transaction) ([]byte, error) {
	w := wireTransaction{
		Signature:       tx.Signature,
		VerificationKey: tx.VerificationKey,
		ChainID:         tx.Body.Params.ChainID,
		Nonce:           uint32(tx.Body.Params.Nonce),
	}
	for i, raw := range tx.Body.Actions {
		kind, payload, err := marshalAction(raw)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		w.Actions = append(w.Actions, actionEnvelope{Kind: kind, Payload: payload})
	}
	return json.Marshal(w)
}

// Unmarshal decodes data into a Transaction, dispatching each action
// envelope to its concrete payload type by its Kind tag.
func Unmarshal(data []byte) (Transaction, error) {
	if len(data) > MaxEncodedSize {
		return Transaction{}, ErrTooLarge
	}
	var w wireTransaction
	if err := json.Unmarshal(data, &w); err != nil {
		return Transaction{}, fmt.Errorf("decoding transaction envelope: %w", err)
	}
	tx := Transaction{
		Signature:       w.Signature,
		VerificationKey: w.VerificationKey,
		Body: Body{
			Params: Params{ChainID: w.ChainID, Nonce: primitive.Nonce(w.Nonce)},
		},
	}
	for i, env := range w.Actions {
		action, err := unmarshalAction(env)
		if err != nil {
			return Transaction{}, fmt.Errorf("action %d: %w", i, err)
		}
		tx.Body.Actions = append(tx.Body.Actions, action)
	}
	return tx, nil
}

func marshalAction(raw any) (fees.ActionKind, json.RawMessage, error) {
	var kind fees.ActionKind
	switch raw.(type) {
	case actions.RollupDataSubmission:
		kind = fees.KindRollupDataSubmission
	case actions.Transfer:
		kind = fees.KindTransfer
	case actions.BridgeLock:
		kind = fees.KindBridgeLock
	case actions.BridgeUnlock:
		kind = fees.KindBridgeUnlock
	case actions.BridgeTransfer:
		kind = fees.KindBridgeTransfer
	case actions.InitBridgeAccount:
		kind = fees.KindInitBridgeAccount
	case actions.BridgeSudoChange:
		kind = fees.KindBridgeSudoChange
	case actions.Ics20Withdrawal:
		kind = fees.KindIcs20Withdrawal
	case actions.IbcRelay:
		kind = fees.KindIbcRelay
	case actions.SudoAddressChange:
		kind = fees.KindSudoAddressChange
	case actions.IbcSudoChange:
		kind = fees.KindIbcSudoChange
	case actions.IbcRelayerChange:
		kind = fees.KindIbcRelayerChange
	case actions.FeeAssetChange:
		kind = fees.KindFeeAssetChange
	case actions.ValidatorUpdate:
		kind = fees.KindValidatorUpdate
	case actions.FeeChange:
		kind = fees.KindFeeChange
	case actions.RecoverIbcClient:
		kind = fees.KindRecoverIbcClient
	case actions.CurrencyPairsChange:
		kind = fees.KindCurrencyPairsChange
	case actions.MarketsChange:
		kind = fees.KindMarketsChange
	default:
		return "", nil, fmt.Errorf("unrecognized action type %T", raw)
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return "", nil, fmt.Errorf("marshaling %s payload: %w", kind, err)
	}
	return kind, payload, nil
}

func unmarshalAction(env actionEnvelope) (any, error) {
	switch env.Kind {
	case fees.KindRollupDataSubmission:
		return decodeAction[actions.RollupDataSubmission](env)
	case fees.KindTransfer:
		return decodeAction[actions.Transfer](env)
	case fees.KindBridgeLock:
		return decodeAction[actions.BridgeLock](env)
	case fees.KindBridgeUnlock:
		return decodeAction[actions.BridgeUnlock](env)
	case fees.KindBridgeTransfer:
		return decodeAction[actions.BridgeTransfer](env)
	case fees.KindInitBridgeAccount:
		return decodeAction[actions.InitBridgeAccount](env)
	case fees.KindBridgeSudoChange:
		return decodeAction[actions.BridgeSudoChange](env)
	case fees.KindIcs20Withdrawal:
		return decodeAction[actions.Ics20Withdrawal](env)
	case fees.KindIbcRelay:
		return decodeAction[actions.IbcRelay](env)
	case fees.KindSudoAddressChange:
		return decodeAction[actions.SudoAddressChange](env)
	case fees.KindIbcSudoChange:
		return decodeAction[actions.IbcSudoChange](env)
	case fees.KindIbcRelayerChange:
		return decodeAction[actions.IbcRelayerChange](env)
	case fees.KindFeeAssetChange:
		return decodeAction[actions.FeeAssetChange](env)
	case fees.KindValidatorUpdate:
		return decodeAction[actions.ValidatorUpdate](env)
	case fees.KindFeeChange:
		return decodeAction[actions.FeeChange](env)
	case fees.KindRecoverIbcClient:
		return decodeAction[actions.RecoverIbcClient](env)
	case fees.KindCurrencyPairsChange:
		return decodeAction[actions.CurrencyPairsChange](env)
	case fees.KindMarketsChange:
		return decodeAction[actions.MarketsChange](env)
	default:
		return nil, fmt.Errorf("unrecognized action kind %q", env.Kind)
	}
}

// decodeAction unmarshals env's payload into a fresh T, the concrete action
// payload type for env.Kind.
func decodeAction[T any](env actionEnvelope) (T, error) {
	var a T
	if err := json.Unmarshal(env.Payload, &a); err != nil {
		return a, fmt.Errorf("decoding %s payload: %w", env.Kind, err)
	}
	return a, nil
}
