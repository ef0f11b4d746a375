package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/blackwell-systems/pkgbridge/internal/boxes"
	"github.com/blackwell-systems/pkgbridge/internal/config"
	"github.com/blackwell-systems/pkgbridge/internal/history"
	"github.com/blackwell-systems/pkgbridge/internal/logging"
	"github.com/blackwell-systems/pkgbridge/internal/state"
	"github.com/blackwell-systems/pkgbridge/internal/transaction"
)

// Env bundles the collaborators every command needs.
type Env struct {
	Config *config.Config
	Store  *state.Store
	Runner boxes.Runner
}

func newEnv() (*Env, error) {
	cfgPath := flagConfigPath
	if cfgPath == "" {
		cfgPath = config.Path()
	}
	cfg := config.LoadFrom(cfgPath)
	if flagNoWait {
		cfg.LockWaitSeconds = 0
	}

	store, err := state.Open(flagStateDir)
	if err != nil {
		return nil, err
	}
	return &Env{Config: cfg, Store: store, Runner: boxes.NewRunner()}, nil
}

// openJournal opens the transaction journal best-effort; commands that only
// read state still work when the journal cannot be opened.
func (e *Env) openJournal() *history.Journal {
	j, err := history.Open(e.Store.HistoryPath())
	if err != nil {
		logger := logging.GetLogger("app")
		logger.Warn().Err(err).Msg("transaction journal unavailable")
		return nil
	}
	return j
}

// lockWait is the configured bound for lock acquisition.
func (e *Env) lockWait() time.Duration {
	return time.Duration(e.Config.LockWaitSeconds) * time.Second
}

type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func liveStdio() stdio {
	return stdio{in: os.Stdin, out: os.Stdout, err: os.Stderr}
}

// transactionOptions builds orchestrator options with live stdio.
func (e *Env) transactionOptions(j *history.Journal, stdio stdio) transaction.Options {
	return transaction.Options{
		Store:   e.Store,
		Config:  e.Config,
		Runner:  e.Runner,
		Journal: j,
		Stdin:   stdio.in,
		Stdout:  stdio.out,
		Stderr:  stdio.err,
	}
}

// resolveBox picks the target box from --container / --family / config
// defaults, optionally creating it.
func (e *Env) resolveBox(ctx context.Context, fallbackFamily boxes.Family) (boxes.Box, error) {
	required := fallbackFamily
	if flagFamily != "" {
		parsed, err := boxes.ParseFamily(flagFamily)
		if err != nil {
			return boxes.Box{}, err
		}
		required = parsed
	}

	override := flagContainer
	if override == "" && required != boxes.FamilyUnknown {
		override = e.Config.Defaults[required.String()]
	}

	box, err := boxes.Select(ctx, e.Runner, required, override, flagCreate, flagCreateImage)
	if err != nil {
		return boxes.Box{}, err
	}
	return box, nil
}

// requireContainerBox resolves a box that must be named explicitly (or via
// --family with a configured default).
func (e *Env) requireContainerBox(ctx context.Context) (boxes.Box, error) {
	if flagContainer == "" && flagFamily == "" {
		return boxes.Box{}, fmt.Errorf("specify a box with --container or --family")
	}
	return e.resolveBox(ctx, boxes.FamilyUnknown)
}
