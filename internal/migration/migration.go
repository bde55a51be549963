// Copyright 2025 James Ross

// Package migration implements the Progress Migration Engine from spec
// §4.11: converting a persisted user-progress id list between
// season-level (`ent_s1`) and episode-level (`ent_s1_e01 ... ent_s1_eNN`)
// representations, with atomic begin/commit/rollback transactions.
// Grounded on
// _examples/other_examples/4889cad9_Altacee-dockation..._migration-engine.go.go
// (transaction begin/commit/rollback shape, job-state persistence) and
// the teacher's internal/storage-backends/migration.go naming
// conventions, narrowed to this domain's single-list conversion instead
// of a multi-resource Docker migration job.
package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcusrbrown/vbs-sub004/internal/catalog"
	"github.com/marcusrbrown/vbs-sub004/internal/episode"
	"github.com/marcusrbrown/vbs-sub004/internal/events"
	"github.com/marcusrbrown/vbs-sub004/internal/obs"
	"github.com/marcusrbrown/vbs-sub004/internal/persistence"
	"go.uber.org/zap"
)

const (
	statusKey         = "migration_state"
	transactionPrefix = "migration_transaction_"
)

// ConversionError records a single id's conversion failure without
// aborting the rest of the batch, per spec §4.11.
type ConversionError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Result is the outcome of Forward or Rollback.
type Result struct {
	IDs    []string          `json:"ids"`
	Errors []ConversionError `json:"errors"`
}

// Direction identifies which way a transaction converts the progress
// list, since only a successful Forward commit leaves a rollback-able
// snapshot behind.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionRollback Direction = "rollback"
)

// State is the persisted Migration State: the current representation
// version and whether a rollback snapshot is still retained.
type State struct {
	CurrentVersion    string    `json:"currentVersion"`
	LastMigrationAt   time.Time `json:"lastMigrationAt"`
	RollbackAvailable bool      `json:"rollbackAvailable"`
	// LastForwardTxID names the transaction whose snapshot backs
	// RollbackAvailable; empty whenever RollbackAvailable is false.
	LastForwardTxID string `json:"lastForwardTxId,omitempty"`
}

// defaultState is substituted, with a warning logged, whenever the
// persisted state is corrupt, per spec §4.11.
var defaultState = State{CurrentVersion: "season-level"}

// Transaction is a begin-transaction(...) handle: the pre-migration
// snapshot and the version being migrated to, persisted under a unique
// key until commit or rollback.
type Transaction struct {
	ID              string    `json:"id"`
	Original        []string  `json:"original"`
	OriginalVersion string    `json:"originalVersion"`
	TargetVersion   string    `json:"targetVersion"`
	Direction       Direction `json:"direction"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Engine runs Forward/Rollback conversions and manages transactions
// against a persisted Migration State.
type Engine struct {
	store   persistence.Store
	catalog catalog.Catalog
	sink    events.Sink
	log     *zap.Logger
	now     func() time.Time
	seq     func() string
}

// New builds an Engine. log defaults to a no-op logger if nil.
func New(store persistence.Store, cat catalog.Catalog, sink events.Sink, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:   store,
		catalog: cat,
		sink:    sink,
		log:     log,
		now:     time.Now,
		seq:     func() string { return uuid.NewString() },
	}
}

// Forward expands season-level ids to their full episode-level list from
// the Catalog. Non-season-form ids (movies, specials) and ids whose
// series has no catalog data are preserved verbatim, per spec §4.11.
func (e *Engine) Forward(ids []string) Result {
	var out []string
	var errs []ConversionError

	for _, id := range ids {
		series, season, ok := episode.SeasonComponents(id)
		if !ok {
			out = append(out, id)
			continue
		}
		expanded, ok := e.catalog.EpisodesInSeason(series, season)
		if !ok {
			e.log.Warn("migration: no catalog data for series/season, preserving id verbatim",
				zap.String("id", id))
			out = append(out, id)
			continue
		}
		out = append(out, expanded...)
	}

	return Result{IDs: out, Errors: errs}
}

// Rollback groups episode-level ids by their season, emitting the
// season id iff every episode of that season is present; partial sets
// are dropped with a documented loss. Non-episode-form ids are preserved
// verbatim.
func (e *Engine) Rollback(ids []string) Result {
	verbatim := make([]string, 0)
	bySeasonOrder := make([]string, 0)
	bySeason := make(map[string][]string)

	for _, id := range ids {
		parsed, err := episode.Parse(id)
		if err != nil {
			verbatim = append(verbatim, id)
			continue
		}
		seasonID := parsed.SeasonID()
		if _, seen := bySeason[seasonID]; !seen {
			bySeasonOrder = append(bySeasonOrder, seasonID)
		}
		bySeason[seasonID] = append(bySeason[seasonID], id)
	}

	var out []string
	var errs []ConversionError
	for _, seasonID := range bySeasonOrder {
		present := bySeason[seasonID]
		series, season, _ := episode.SeasonComponents(seasonID)
		full, ok := e.catalog.EpisodesInSeason(series, season)
		if !ok || !containsAll(full, present) {
			errs = append(errs, ConversionError{
				ID:      seasonID,
				Message: "partial season progress dropped: not all episodes present",
			})
			continue
		}
		out = append(out, seasonID)
	}
	out = append(out, verbatim...)

	return Result{IDs: out, Errors: errs}
}

func containsAll(full, present []string) bool {
	have := make(map[string]bool, len(present))
	for _, id := range present {
		have[id] = true
	}
	for _, id := range full {
		if !have[id] {
			return false
		}
	}
	return true
}

// LoadState returns the persisted Migration State, substituting
// defaultState with a warning if the stored value is corrupt.
func (e *Engine) LoadState(ctx context.Context) State {
	raw, ok, err := e.store.Get(ctx, statusKey)
	if err != nil || !ok {
		return defaultState
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		e.log.Warn("migration: corrupt persisted state, using defaults", zap.Error(err))
		return defaultState
	}
	return s
}

func (e *Engine) saveState(ctx context.Context, s State) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return e.store.Set(ctx, statusKey, raw, 0)
}

// BeginTransaction snapshots original under a unique transaction key so
// it can be restored by RollbackTx if Commit never happens.
func (e *Engine) BeginTransaction(ctx context.Context, original []string, originalVersion, targetVersion string, direction Direction) (Transaction, error) {
	tx := Transaction{
		ID:              e.seq(),
		Original:        original,
		OriginalVersion: originalVersion,
		TargetVersion:   targetVersion,
		Direction:       direction,
		CreatedAt:       e.now(),
	}
	raw, err := json.Marshal(tx)
	if err != nil {
		return Transaction{}, err
	}
	if err := e.store.Set(ctx, transactionPrefix+tx.ID, raw, 0); err != nil {
		return Transaction{}, err
	}
	e.publish(events.MigrationStarted, tx)
	return tx, nil
}

// Commit persists the new representation version and updates rollback
// availability. A forward-direction commit retains its transaction
// record (rather than deleting it, the general rule) so
// RollbackAvailable's snapshot stays addressable by RollbackTx; a
// rollback-direction commit has nothing left to undo, so it cleans up
// both its own transaction and any previously-retained forward one.
func (e *Engine) Commit(ctx context.Context, tx Transaction, result Result) error {
	prior := e.LoadState(ctx)
	state := State{
		CurrentVersion:  tx.TargetVersion,
		LastMigrationAt: e.now(),
	}

	if tx.Direction == DirectionForward {
		state.RollbackAvailable = true
		state.LastForwardTxID = tx.ID
	} else {
		state.RollbackAvailable = false
		if prior.LastForwardTxID != "" {
			_ = e.store.Delete(ctx, transactionPrefix+prior.LastForwardTxID)
		}
		if err := e.store.Delete(ctx, transactionPrefix+tx.ID); err != nil {
			e.log.Warn("migration: failed to clean up committed transaction", zap.String("tx", tx.ID), zap.Error(err))
		}
	}

	if err := e.saveState(ctx, state); err != nil {
		obs.MigrationTransactions.WithLabelValues("commit_failed").Inc()
		return err
	}
	obs.MigrationTransactions.WithLabelValues("committed").Inc()
	e.publish(events.MigrationCommitted, result)
	return nil
}

// RollbackTx restores a transaction's original snapshot as the current
// Migration State and returns it as a Result for the caller to persist
// as the actual progress list. Used both to abort an uncommitted
// transaction and to undo the most recent successful forward migration
// (state.LastForwardTxID) while RollbackAvailable is true.
func (e *Engine) RollbackTx(ctx context.Context, txID string) (Result, error) {
	raw, ok, err := e.store.Get(ctx, transactionPrefix+txID)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, fmt.Errorf("migration: unknown transaction %s", txID)
	}
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Result{}, err
	}

	state := State{
		CurrentVersion:    tx.OriginalVersion,
		LastMigrationAt:   e.now(),
		RollbackAvailable: false,
	}
	if err := e.saveState(ctx, state); err != nil {
		obs.MigrationTransactions.WithLabelValues("rollback_failed").Inc()
		return Result{}, err
	}
	if err := e.store.Delete(ctx, transactionPrefix+txID); err != nil {
		e.log.Warn("migration: failed to clean up rolled-back transaction", zap.String("tx", txID), zap.Error(err))
	}
	obs.MigrationTransactions.WithLabelValues("rolled_back").Inc()
	result := Result{IDs: tx.Original}
	e.publish(events.MigrationRolledBack, tx)
	return result, nil
}

// RollbackAvailable reports whether the most recent successful forward
// migration's snapshot is still retained, per spec §4.11.
func (e *Engine) RollbackAvailable(ctx context.Context) bool {
	return e.LoadState(ctx).RollbackAvailable
}

// ProgressFile is the export/import file schema from spec §6.
type ProgressFile struct {
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
	Progress  []string  `json:"progress"`
}

// ExportProgress serializes a progress id list to the documented file
// schema.
func (e *Engine) ExportProgress(ids []string) ProgressFile {
	return ProgressFile{
		Version:   e.LoadState(context.Background()).CurrentVersion,
		Timestamp: e.now(),
		Progress:  ids,
	}
}

// ImportProgress validates and decodes a progress export. Malformed
// files produce a clearly identified error rather than a partial or
// silently-accepted result, per spec §6.
func ImportProgress(raw []byte) (ProgressFile, error) {
	var f ProgressFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return ProgressFile{}, fmt.Errorf("migration: malformed progress file: %w", err)
	}
	if f.Version == "" {
		return ProgressFile{}, fmt.Errorf("migration: progress file missing version")
	}
	if f.Timestamp.IsZero() {
		return ProgressFile{}, fmt.Errorf("migration: progress file missing timestamp")
	}
	if f.Progress == nil {
		return ProgressFile{}, fmt.Errorf("migration: progress file missing progress list")
	}
	return f, nil
}

func (e *Engine) publish(t events.Type, payload any) {
	if e.sink != nil {
		e.sink.Publish(events.Event{Type: t, Payload: payload})
	}
}
