// Package updater keeps a local content store in sync with a content server.
//
// A Manager runs one session at a time:
//
//  1. CheckForUpdates downloads and parses the manifest, compares it with the
//     installed blocks, and reports whether anything needs to change.
//  2. ProcessUpdates removes obsolete blocks, then downloads, verifies and
//     installs each needed block in manifest order, one at a time.
//
// Results are delivered through Callbacks. Transport, parse and integrity
// failures are retried within fixed budgets and never escape the Manager.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/javanhut/contentsync/internal/block"
	"github.com/javanhut/contentsync/internal/blockdiff"
	"github.com/javanhut/contentsync/internal/manifest"
	"github.com/javanhut/contentsync/internal/storage"
)

// State is the manager's position in the check/update cycle.
type State int

const (
	Idle State = iota
	CheckingManifest
	Updating
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckingManifest:
		return "checking"
	case Updating:
		return "updating"
	case Complete:
		return "complete"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

const (
	DefaultManifestPath     = "manifest"
	DefaultManifestAttempts = 5
	DefaultBlockAttempts    = 3
)

// Callbacks receive session events. Nil callbacks are skipped. They run on
// the goroutine that called CheckForUpdates or ProcessUpdates.
type Callbacks struct {
	// OnProgress reports bytes downloaded so far across the whole update.
	OnProgress func(downloaded, total uint64, block string)
	// OnComplete fires once when ProcessUpdates finishes.
	OnComplete func(success bool, transferred uint64)
	// OnUpdateChecked fires once per CheckForUpdates.
	OnUpdateChecked func(needsUpdate, failed bool, message string)
}

// InstallObserver is told about blocks installed into or removed from the store.
type InstallObserver interface {
	BlockInstalled(lb storage.LocalBlock, written map[string][]byte)
	BlockRemoved(id string)
}

// Options configures a Manager.
type Options struct {
	BaseURL          string
	ManifestPath     string
	ManifestAttempts int
	BlockAttempts    int
	// Backoff is multiplied by the attempt number between retries. Zero retries immediately.
	Backoff   time.Duration
	Callbacks Callbacks
	Observer  InstallObserver
	Logger    *slog.Logger
	// Reserved lists store paths block content may never overwrite, such as
	// a journal kept inside the store root. BlocksDir is always reserved.
	Reserved []string
}

// Manager owns the update session state.
type Manager struct {
	fetcher Fetcher
	store   storage.Store
	blocks  *storage.Blocks
	opts    Options
	log     *slog.Logger

	mu            sync.Mutex
	state         State
	inProgress    bool
	processing    bool
	session       string
	failureCount  int
	totalProgress uint64
	updateSize    uint64
	needed        []manifest.Entry
	old           []storage.LocalBlock
	failedBlocks  int
}

// New creates a Manager that downloads through fetcher and installs into store.
func New(fetcher Fetcher, store storage.Store, opts Options) *Manager {
	if opts.ManifestPath == "" {
		opts.ManifestPath = DefaultManifestPath
	}
	if opts.ManifestAttempts <= 0 {
		opts.ManifestAttempts = DefaultManifestAttempts
	}
	if opts.BlockAttempts <= 0 {
		opts.BlockAttempts = DefaultBlockAttempts
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		fetcher: fetcher,
		store:   store,
		blocks:  storage.NewBlocks(store, log),
		opts:    opts,
		log:     log,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// InProgress reports whether a session is open, from CheckForUpdates until
// the session completes.
func (m *Manager) InProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inProgress
}

// FailureCount returns the consecutive failures of the current step.
func (m *Manager) FailureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failureCount
}

// Pending returns the identifiers still queued for download and removal.
func (m *Manager) Pending() (download, remove []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.needed {
		download = append(download, e.ID)
	}
	for _, lb := range m.old {
		remove = append(remove, lb.ID)
	}
	return download, remove
}

// CheckForUpdates fetches the manifest and diffs it against the installed
// blocks. It is a no-op while a session is already open. When updates are
// found the session stays open until ProcessUpdates completes it.
func (m *Manager) CheckForUpdates(ctx context.Context) {
	m.mu.Lock()
	if m.inProgress {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.inProgress = true
	m.state = CheckingManifest
	m.session = uuid.NewString()
	m.mu.Unlock()

	log := m.sessionLogger()
	log.Info("checking for content updates", "url", m.manifestURL())

	man, err := m.fetchManifest(ctx, log)
	if err != nil {
		log.Error("content check failed", "error", err)
		m.finishCheck(true, err.Error())
		return
	}
	for _, s := range man.Skipped {
		log.Warn("skipping manifest entry", "index", s.Index, "reason", s.Reason)
	}

	local := m.blocks.ReadLocalBlocks()
	toUpdate, toDelete := blockdiff.Compute(man.Entries, local)
	if len(toUpdate) == 0 && len(toDelete) == 0 {
		log.Info("content is up to date", "blocks", len(local))
		m.finishCheck(false, "")
		return
	}

	var size uint64
	for _, e := range toUpdate {
		size += e.Size
	}
	m.mu.Lock()
	m.needed = toUpdate
	m.old = toDelete
	m.updateSize = size
	m.mu.Unlock()

	log.Info("content update available", "download", len(toUpdate), "remove", len(toDelete), "bytes", size)
	if cb := m.opts.Callbacks.OnUpdateChecked; cb != nil {
		cb(true, false, "")
	}
}

// ProcessUpdates applies the changes found by CheckForUpdates: obsolete
// blocks are removed first, then needed blocks are installed one at a time.
// Cancelling ctx stops the session at the next download boundary.
func (m *Manager) ProcessUpdates(ctx context.Context) {
	m.mu.Lock()
	if m.processing {
		m.mu.Unlock()
		return
	}
	if len(m.needed) == 0 && len(m.old) == 0 {
		m.mu.Unlock()
		m.log.Warn("no pending content updates to process")
		return
	}
	m.processing = true
	m.state = Updating
	old := m.old
	m.old = nil
	m.mu.Unlock()

	log := m.sessionLogger()
	for _, lb := range old {
		m.removeBlock(log, lb)
	}

	for {
		entry, ok := m.head()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			log.Warn("content update cancelled", "block", entry.ID, "error", err)
			m.complete(log, false)
			return
		}
		m.attempt(ctx, log, entry)
	}

	m.mu.Lock()
	success := m.failedBlocks == 0
	m.mu.Unlock()
	m.complete(log, success)
}

func (m *Manager) fetchManifest(ctx context.Context, log *slog.Logger) (*manifest.Manifest, error) {
	for {
		body, err := m.fetcher.Fetch(ctx, m.manifestURL(), nil)
		if err == nil && len(body) == 0 {
			err = errEmptyManifest
		}
		var man *manifest.Manifest
		if err == nil {
			man, err = manifest.Parse(body)
		}
		if err == nil {
			m.setFailures(0)
			return man, nil
		}

		attempt := m.addFailure()
		log.Warn("manifest download failed", "attempt", attempt, "max", m.opts.ManifestAttempts, "error", err)
		if attempt >= m.opts.ManifestAttempts {
			return nil, fmt.Errorf("manifest unavailable after %d attempts: %w", attempt, err)
		}
		if werr := m.wait(ctx, attempt); werr != nil {
			return nil, fmt.Errorf("manifest check cancelled: %w", werr)
		}
	}
}

// attempt makes one download attempt for the block at the head of the queue.
func (m *Manager) attempt(ctx context.Context, log *slog.Logger, entry manifest.Entry) {
	log = log.With("block", entry.ID)
	data, err := m.fetcher.Fetch(ctx, m.blockURL(entry), func(received uint64) {
		m.reportProgress(received, entry.ID)
	})
	var payload []byte
	if err == nil {
		payload, err = verifyPayload(data, entry.Hash)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.blockFailed(ctx, log, err)
		return
	}

	m.mu.Lock()
	m.needed = m.needed[1:]
	m.failureCount = 0
	m.totalProgress += entry.Size
	m.mu.Unlock()

	m.install(log, entry, payload)
	m.reportProgress(0, entry.ID)
}

func (m *Manager) blockFailed(ctx context.Context, log *slog.Logger, err error) {
	attempt := m.addFailure()
	if attempt >= m.opts.BlockAttempts {
		log.Error("dropping block after repeated failures", "attempts", attempt, "error", err)
		m.mu.Lock()
		m.needed = m.needed[1:]
		m.failureCount = 0
		m.failedBlocks++
		m.mu.Unlock()
		return
	}
	log.Warn("block download failed, retrying", "attempt", attempt, "max", m.opts.BlockAttempts, "error", err)
	if err := m.wait(ctx, attempt); err != nil {
		log.Debug("retry wait interrupted", "error", err)
	}
}

// install writes a verified block into the store. Individual file failures
// are logged and skipped; the descriptor is written last.
func (m *Manager) install(log *slog.Logger, entry manifest.Entry, payload []byte) {
	cb, err := block.ReadHeader(payload)
	if err != nil {
		log.Error("unreadable block container, skipping install", "error", err)
		m.mu.Lock()
		m.failedBlocks++
		m.mu.Unlock()
		return
	}
	for _, s := range cb.Skipped {
		log.Warn("skipping container entry", "index", s.Index, "reason", s.Reason)
	}
	if cb.ID != entry.ID {
		log.Warn("container identifier differs from manifest, installing under manifest identifier", "container", cb.ID)
	}

	var files []string
	paths := make(map[string]string, len(cb.Entries))
	for _, e := range cb.Entries {
		if _, seen := paths[e.File]; seen {
			continue
		}
		p, ok := m.installable(e.File)
		if !ok {
			log.Warn("skipping file outside content area", "path", e.File)
			paths[e.File] = ""
			continue
		}
		if !slices.Contains(files, p) {
			files = append(files, p)
		}
		paths[e.File] = p
	}
	if prev, ok := m.blocks.ReadLocalBlock(entry.ID); ok {
		for _, f := range prev.Files {
			if slices.Contains(files, f) || !m.store.FileExists(f) {
				continue
			}
			if !m.store.DeleteFile(f) {
				log.Warn("failed to delete stale file", "path", f)
			}
		}
	}

	written := make(map[string][]byte, len(cb.Entries))
	for _, e := range cb.Entries {
		p := paths[e.File]
		if p == "" {
			continue
		}
		data := cb.Bytes(e)
		if !m.store.WriteFile(p, data) {
			log.Warn("failed to write file", "path", p)
			continue
		}
		written[p] = data
	}

	lb := storage.LocalBlock{ID: entry.ID, Hash: entry.Hash, Files: files}
	if !m.blocks.WriteLocalBlock(lb) {
		log.Error("failed to write block descriptor", "path", storage.BlockPath(entry.ID))
		return
	}
	log.Info("installed block", "files", len(written), "bytes", len(payload))
	if m.opts.Observer != nil {
		m.opts.Observer.BlockInstalled(lb, written)
	}
}

// installable cleans a container file path and reports whether content may
// be written there. Descriptors and reserved paths are off limits.
func (m *Manager) installable(name string) (string, bool) {
	p, err := storage.CleanPath(name)
	if err != nil {
		return "", false
	}
	first, _, _ := strings.Cut(p, "/")
	if strings.EqualFold(first, storage.BlocksDir) {
		return "", false
	}
	for _, r := range m.opts.Reserved {
		if strings.EqualFold(p, r) {
			return "", false
		}
	}
	return p, true
}

func (m *Manager) removeBlock(log *slog.Logger, lb storage.LocalBlock) {
	for _, f := range lb.Files {
		if !m.store.DeleteFile(f) {
			log.Warn("failed to delete obsolete file", "block", lb.ID, "path", f)
		}
	}
	if !m.blocks.DeleteLocalBlock(lb.ID) {
		log.Warn("failed to delete block descriptor", "block", lb.ID)
	}
	log.Info("removed obsolete block", "block", lb.ID, "files", len(lb.Files))
	if m.opts.Observer != nil {
		m.opts.Observer.BlockRemoved(lb.ID)
	}
}

func (m *Manager) finishCheck(failed bool, message string) {
	m.mu.Lock()
	m.resetLocked()
	m.state = Complete
	m.mu.Unlock()
	if cb := m.opts.Callbacks.OnUpdateChecked; cb != nil {
		cb(false, failed, message)
	}
}

func (m *Manager) complete(log *slog.Logger, success bool) {
	m.mu.Lock()
	transferred := m.totalProgress
	failed := m.failedBlocks
	m.resetLocked()
	m.state = Complete
	m.mu.Unlock()

	log.Info("content update finished", "success", success, "bytes", transferred, "failed_blocks", failed)
	if cb := m.opts.Callbacks.OnComplete; cb != nil {
		cb(success, transferred)
	}
}

// resetLocked clears the session. m.mu must be held.
func (m *Manager) resetLocked() {
	m.inProgress = false
	m.processing = false
	m.failureCount = 0
	m.totalProgress = 0
	m.updateSize = 0
	m.failedBlocks = 0
	m.needed = nil
	m.old = nil
}

func (m *Manager) reportProgress(received uint64, id string) {
	cb := m.opts.Callbacks.OnProgress
	if cb == nil {
		return
	}
	m.mu.Lock()
	done, total := m.totalProgress+received, m.updateSize
	m.mu.Unlock()
	cb(done, total, id)
}

func (m *Manager) head() (manifest.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.needed) == 0 {
		return manifest.Entry{}, false
	}
	return m.needed[0], true
}

func (m *Manager) addFailure() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failureCount++
	return m.failureCount
}

func (m *Manager) setFailures(n int) {
	m.mu.Lock()
	m.failureCount = n
	m.mu.Unlock()
}

func (m *Manager) wait(ctx context.Context, attempt int) error {
	if m.opts.Backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(time.Duration(attempt) * m.opts.Backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *Manager) sessionLogger() *slog.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.log.With("session", m.session)
}

func (m *Manager) manifestURL() string {
	return joinURL(m.opts.BaseURL, m.opts.ManifestPath)
}

func (m *Manager) blockURL(e manifest.Entry) string {
	return joinURL(m.opts.BaseURL, e.URL)
}

func joinURL(base, p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(p, "/")
}
