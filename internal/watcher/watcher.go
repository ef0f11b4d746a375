// Package watcher keeps the export records honest while pkgbridge is not
// running a transaction.
//
// Exported files live in user-owned directories; the user can delete or
// replace them at any time. The watcher listens for filesystem events on the
// export directories and periodically resyncs, dropping records whose host
// file is gone or no longer contains what pkgbridge wrote. It never deletes
// files and never re-exports; it only reconciles the record set.
package watcher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/pkgbridge/internal/logging"
	"github.com/blackwell-systems/pkgbridge/internal/state"
)

const defaultResyncEvery = 5 * time.Minute

// Watcher reconciles export records against the export directories.
type Watcher struct {
	store    *state.Store
	binDir   string
	appsDir  string
	lockWait time.Duration

	resyncEvery time.Duration
	fsw         *fsnotify.Watcher
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// New creates a Watcher over the two export directories.
func New(store *state.Store, binDir, appsDir string, lockWait time.Duration) (*Watcher, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &Watcher{
		store:       store,
		binDir:      binDir,
		appsDir:     appsDir,
		lockWait:    lockWait,
		resyncEvery: defaultResyncEvery,
		stopCh:      make(chan struct{}),
	}, nil
}

// Start reconciles once, then watches for deletions and renames in the
// export directories with a periodic full resync as a backstop for events
// fsnotify misses.
func (w *Watcher) Start() error {
	log := logging.GetLogger("watcher")

	if err := w.Reconcile(); err != nil {
		log.Warn().Err(err).Msg("initial reconcile failed")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	w.fsw = fsw

	for _, dir := range []string{w.binDir, w.appsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fsw.Close()
			return fmt.Errorf("creating export directory %s: %w", dir, err)
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	log := logging.GetLogger("watcher")

	ticker := time.NewTicker(w.resyncEvery)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename|fsnotify.Write) == 0 {
				continue
			}
			log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("export directory changed")
			if err := w.Reconcile(); err != nil {
				log.Warn().Err(err).Msg("reconcile failed")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("filesystem watcher error")
		case <-ticker.C:
			if err := w.Reconcile(); err != nil {
				log.Warn().Err(err).Msg("periodic reconcile failed")
			}
		case <-w.stopCh:
			return
		}
	}
}

// Stop halts the watcher after a final reconcile.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	w.wg.Wait()
	if w.fsw != nil {
		w.fsw.Close()
	}
	return w.Reconcile()
}

// Reconcile drops records whose host file disappeared or was replaced by the
// user. Runs under the exports lock so it never races a live transaction.
func (w *Watcher) Reconcile() error {
	log := logging.GetLogger("watcher")

	lock, err := w.store.AcquireExportsLock(w.lockWait)
	if err != nil {
		return err
	}
	defer lock.Release()

	records := w.store.LoadExports()
	var stale []string
	for _, rec := range records.Records {
		switch recordStatus(rec) {
		case statusMissing:
			log.Info().Str("host_path", rec.HostPath).Msg("exported file deleted; dropping record")
			stale = append(stale, rec.HostPath)
		case statusReplaced:
			log.Info().Str("host_path", rec.HostPath).Msg("exported file replaced by user; dropping record")
			stale = append(stale, rec.HostPath)
		}
	}
	if len(stale) == 0 {
		return nil
	}

	for _, path := range stale {
		records.Remove(path)
	}
	return w.store.SaveExports(records)
}

type fileStatus int

const (
	statusOwned fileStatus = iota
	statusMissing
	statusReplaced
)

func recordStatus(rec state.ExportRecord) fileStatus {
	data, err := os.ReadFile(rec.HostPath)
	if err != nil {
		if os.IsNotExist(err) {
			return statusMissing
		}
		// Unreadable is not evidence of replacement; keep the record.
		return statusOwned
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != rec.ContentHash {
		return statusReplaced
	}
	return statusOwned
}
