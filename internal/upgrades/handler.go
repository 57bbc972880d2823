package upgrades

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	rpchttp "github.com/cometbft/cometbft/rpc/client/http"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/astria-net/sequencer-core/internal/state"
)

// ShutdownReason is returned by ShouldShutDown when the binary must stop
// and be replaced before the next block, per §4.7. BlockTime is the
// previously-finalized block's time, the most recent point this binary can
// still attest to; internal/state has no API to preview a pending delta's
// root hash before it is committed, so no app hash is available here.
type ShutdownReason struct {
	UpgradeName      string
	ActivationHeight int64
	BlockTime        time.Time
}

func (r ShutdownReason) Error() string {
	return fmt.Sprintf("upgrade %q activates at height %d: binary must be replaced before then (last known block time %s)",
		r.UpgradeName, r.ActivationHeight, r.BlockTime)
}

// MigrationFunc applies an upgrade's state migrations beyond recording its
// changes' hashes (e.g. seeding a new module's genesis state). Registered
// per upgrade name; an upgrade with no registered migration still has its
// change hashes recorded, it just performs no additional state writes.
type MigrationFunc func(d *state.Delta, u Upgrade) error

// Handler applies a Manifest against running chain state, grounded on the
// original's UpgradesHandler (upgrades_handler.rs).
type Handler struct {
	manifest   Manifest
	known      KnownUpgrades
	migrations map[string]MigrationFunc
	rpcAddr    string
	logger     *slog.Logger
}

// NewHandler constructs a Handler. rpcAddr is the CometBFT RPC endpoint used
// to fall back to when local state has no consensus params recorded yet; it
// may be empty, in which case that fallback is skipped.
func NewHandler(manifest Manifest, migrations map[string]MigrationFunc, rpcAddr string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	known := make(KnownUpgrades, len(migrations))
	for name := range migrations {
		known[name] = true
	}
	return &Handler{manifest: manifest, known: known, migrations: migrations, rpcAddr: rpcAddr, logger: logger}
}

// EnsureHistoricalUpgradesApplied verifies every upgrade that should
// already have activated has its change hashes recorded in d, matching
// what this binary's manifest says they should be. A mismatch means the
// wrong upgrades manifest was provided and is fatal at boot.
func (h *Handler) EnsureHistoricalUpgradesApplied(d *state.Delta) error {
	nextHeight := GetBlockHeight(d) + 1
	for _, u := range h.manifest.Historical(nextHeight) {
		for _, c := range u.Changes {
			stored, ok := GetChangeInfo(d, u.Name, c.Name)
			if !ok {
				return fmt.Errorf("historical upgrade change %q/%q has not been applied (wrong upgrades manifest?)", u.Name, c.Name)
			}
			if stored != c.Hash() {
				return fmt.Errorf("upgrade change %q/%q hash %s does not match stored hash %s", u.Name, c.Name, c.Hash(), stored)
			}
		}
	}
	return nil
}

// ShouldShutDown returns a non-nil *ShutdownReason if an upgrade not known
// to this binary activates at the next block height and requires a
// shutdown, per §4.7's pre-block check.
func (h *Handler) ShouldShutDown(d *state.Delta) *ShutdownReason {
	nextHeight := GetBlockHeight(d) + 1
	u, ok := h.manifest.ActivatingAtOrAfter(nextHeight)
	if !ok || u.ActivationHeight != nextHeight {
		return nil
	}
	if h.known[u.Name] || !u.ShutdownRequired {
		return nil
	}
	blockTime, _ := GetBlockTimestamp(d)
	return &ShutdownReason{
		UpgradeName:      u.Name,
		ActivationHeight: u.ActivationHeight,
		BlockTime:        blockTime,
	}
}

// ExecuteUpgradeIfDue writes change-info records and runs the registered
// migration for any upgrade activating exactly at blockHeight. Returns the
// hashes of every change applied, or nil if no upgrade activates here.
func (h *Handler) ExecuteUpgradeIfDue(d *state.Delta, blockHeight int64) ([]string, error) {
	u, ok := h.manifest.ActivatingAt(blockHeight)
	if !ok {
		return nil, nil
	}

	hashes := make([]string, 0, len(u.Changes))
	for _, c := range u.Changes {
		hashes = append(hashes, c.Hash())
		PutChangeInfo(d, u.Name, c)
		h.logger.Info("executed upgrade change", "upgrade", u.Name, "change", c.Name)
	}

	if migrate, ok := h.migrations[u.Name]; ok {
		if err := migrate(d, u); err != nil {
			return nil, fmt.Errorf("running migration for upgrade %q: %w", u.Name, err)
		}
	}

	return hashes, nil
}

// EndBlock updates consensus params for any upgrade activating at
// blockHeight: the ABCI app_version always increases, and a migration may
// additionally request a vote-extensions enable height or other ABCI param
// changes by mutating params before returning. Returns nil if no upgrade
// activates here.
func (h *Handler) EndBlock(ctx context.Context, d *state.Delta, blockHeight int64) (*tmproto.ConsensusParams, error) {
	u, ok := h.manifest.ActivatingAt(blockHeight)
	if !ok {
		return nil, nil
	}

	params, err := h.getConsensusParams(ctx, d, blockHeight)
	if err != nil {
		return nil, fmt.Errorf("getting consensus params for upgrade %q end_block: %w", u.Name, err)
	}

	if params.Version != nil && u.AppVersion <= params.Version.App {
		h.logger.Error("new app version is not greater than existing version",
			"upgrade", u.Name, "new_app_version", u.AppVersion, "existing_app_version", params.Version.App)
	}
	params.Version = &tmproto.VersionParams{App: u.AppVersion}

	raw, err := protojson.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding consensus params: %w", err)
	}
	PutConsensusParams(d, raw)

	return params, nil
}

// getConsensusParams implements §4.7's three-tier lookup: local state,
// then the consensus engine's RPC with exponential backoff, then a
// hard-coded default (valid only for the very first upgrade, when state
// has never held consensus params).
func (h *Handler) getConsensusParams(ctx context.Context, d *state.Delta, blockHeight int64) (*tmproto.ConsensusParams, error) {
	if raw, ok := GetConsensusParams(d); ok {
		var params tmproto.ConsensusParams
		if err := protojson.Unmarshal(raw, &params); err == nil {
			return &params, nil
		}
	}

	if h.rpcAddr != "" {
		if params, err := h.getConsensusParamsFromCometBFT(ctx, blockHeight); err == nil {
			return params, nil
		} else {
			h.logger.Warn("falling back to hard-coded consensus params", "error", err)
		}
	}

	return defaultConsensusParams(), nil
}

func (h *Handler) getConsensusParamsFromCometBFT(ctx context.Context, blockHeight int64) (*tmproto.ConsensusParams, error) {
	client, err := rpchttp.New(h.rpcAddr, "/websocket")
	if err != nil {
		return nil, fmt.Errorf("constructing cometbft rpc client: %w", err)
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 16), ctx)

	var result *tmproto.ConsensusParams
	op := func() error {
		res, err := client.ConsensusParams(ctx, &blockHeight)
		if err != nil {
			h.logger.Warn("failed to get consensus params from cometbft; retrying after backoff", "error", err)
			return err
		}
		proto := res.ConsensusParams.ToProto()
		result = &proto
		return nil
	}
	if err := backoff.Retry(op, bo); err != nil {
		return nil, fmt.Errorf("getting consensus params from %s: %w", h.rpcAddr, err)
	}
	return result, nil
}

// defaultConsensusParams mirrors the original's hard-coded Astria
// Mainnet/Testnet genesis consensus params, used only as a last resort
// before any upgrade has ever persisted params to state.
func defaultConsensusParams() *tmproto.ConsensusParams {
	return &tmproto.ConsensusParams{
		Block: &tmproto.BlockParams{
			MaxBytes: 1_048_576,
			MaxGas:   -1,
		},
		Evidence: &tmproto.EvidenceParams{
			MaxAgeNumBlocks: 4_000_000,
			MaxAgeDuration:  1_209_600 * time.Second,
			MaxBytes:        1_048_576,
		},
		Validator: &tmproto.ValidatorParams{
			PubKeyTypes: []string{"ed25519"},
		},
		Version: &tmproto.VersionParams{App: 0},
	}
}
