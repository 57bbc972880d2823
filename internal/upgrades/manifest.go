// Package upgrades implements the upgrade-manifest handler described in
// §4.7: boot-time verification that every historical upgrade has already
// been applied, pre-block shutdown gating for upgrades this binary does not
// know about, and per-upgrade state migrations plus consensus-params
// updates at the upgrade's activation height.
package upgrades

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Change is one named, independently-hashed state mutation belonging to an
// Upgrade. Payload carries whatever upgrade-specific data the change needs
// (e.g. a price-feed market-map genesis document); it is opaque to this
// package and interpreted only by the migration registered under the
// owning Upgrade's name.
type Change struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Hash returns the change's stable content hash, recorded in state at
// activation and checked against on every later boot to detect a wrong or
// tampered upgrades manifest.
func (c Change) Hash() string {
	h := sha256.New()
	h.Write([]byte(c.Name))
	h.Write(c.Payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Upgrade is one named, height-activated set of changes.
type Upgrade struct {
	Name             string   `json:"name"`
	ActivationHeight int64    `json:"activation_height"`
	AppVersion       uint64   `json:"app_version"`
	ShutdownRequired bool     `json:"shutdown_required"`
	Changes          []Change `json:"changes"`
}

// Manifest is the full ordered list of upgrades a binary is configured
// with, grounded on the original's astria_core::upgrades::v1::Upgrades.
type Manifest struct {
	Upgrades []Upgrade `json:"upgrades"`
}

// LoadManifest reads and parses a manifest file, sorting upgrades by
// activation height so every lookup can assume ascending order (the
// original relies on this same invariant throughout upgrades_handler.rs).
func LoadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading upgrades manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return Manifest{}, fmt.Errorf("parsing upgrades manifest %s: %w", path, err)
	}
	sort.Slice(m.Upgrades, func(i, j int) bool {
		return m.Upgrades[i].ActivationHeight < m.Upgrades[j].ActivationHeight
	})
	for i := 1; i < len(m.Upgrades); i++ {
		if m.Upgrades[i].ActivationHeight == m.Upgrades[i-1].ActivationHeight {
			return Manifest{}, fmt.Errorf("upgrades %q and %q share activation height %d",
				m.Upgrades[i-1].Name, m.Upgrades[i].Name, m.Upgrades[i].ActivationHeight)
		}
	}
	return m, nil
}

// ActivatingAt returns the upgrade whose ActivationHeight equals height, if
// any.
func (m Manifest) ActivatingAt(height int64) (Upgrade, bool) {
	for _, u := range m.Upgrades {
		if u.ActivationHeight == height {
			return u, true
		}
		if u.ActivationHeight > height {
			break
		}
	}
	return Upgrade{}, false
}

// Historical returns every upgrade whose ActivationHeight is strictly
// below nextHeight, i.e. upgrades that must already have been applied.
func (m Manifest) Historical(nextHeight int64) []Upgrade {
	var out []Upgrade
	for _, u := range m.Upgrades {
		if u.ActivationHeight >= nextHeight {
			break
		}
		out = append(out, u)
	}
	return out
}

// ActivatingAtOrAfter returns the first upgrade (in ascending activation
// order) whose ActivationHeight is >= height, if any. Used by
// ShouldShutDown to find the next upgrade this binary must consider.
func (m Manifest) ActivatingAtOrAfter(height int64) (Upgrade, bool) {
	for _, u := range m.Upgrades {
		if u.ActivationHeight >= height {
			return u, true
		}
	}
	return Upgrade{}, false
}

// KnownUpgrades is the set of upgrade names this binary has a migration
// registered for, i.e. upgrades it can actually execute. An upgrade
// present in the manifest but absent from this set forces a shutdown at
// its activation height when ShutdownRequired is set (§4.7).
type KnownUpgrades map[string]bool
