package storage

import (
	"encoding/json"
	"log/slog"
	"path"
	"strings"
)

const (
	// BlocksDir is the store directory holding LocalBlock descriptors.
	BlocksDir = "blocks"
	// BlockExt is the descriptor file extension.
	BlockExt = ".block"
)

// LocalBlock records an installed content block: the hash it was installed
// at and the files it owns.
type LocalBlock struct {
	ID    string   `json:"Id"`
	Hash  string   `json:"Hash"`
	Files []string `json:"Files"`
}

// BlockPath returns the descriptor path for an identifier.
func BlockPath(id string) string {
	return path.Join(BlocksDir, strings.ToLower(id)+BlockExt)
}

// Blocks reads and writes LocalBlock descriptors through a Store.
type Blocks struct {
	store Store
	log   *slog.Logger
}

// NewBlocks wraps store for descriptor access.
func NewBlocks(store Store, log *slog.Logger) *Blocks {
	if log == nil {
		log = slog.Default()
	}
	return &Blocks{store: store, log: log}
}

// ReadLocalBlocks returns every descriptor under BlocksDir. Unreadable or
// malformed descriptors are logged and skipped.
func (b *Blocks) ReadLocalBlocks() []LocalBlock {
	var out []LocalBlock
	for _, p := range b.store.ListFiles(BlocksDir, BlockExt) {
		lb, ok := b.decode(p)
		if !ok {
			continue
		}
		out = append(out, lb)
	}
	return out
}

// ReadLocalBlock looks up a single descriptor by identifier.
func (b *Blocks) ReadLocalBlock(id string) (LocalBlock, bool) {
	p := BlockPath(id)
	if !b.store.FileExists(p) {
		return LocalBlock{}, false
	}
	return b.decode(p)
}

// WriteLocalBlock writes lb's descriptor, replacing any previous one.
func (b *Blocks) WriteLocalBlock(lb LocalBlock) bool {
	lb.ID = strings.ToLower(lb.ID)
	if lb.Files == nil {
		lb.Files = []string{}
	}
	data, err := json.Marshal(lb)
	if err != nil {
		b.log.Warn("encode block descriptor", "block", lb.ID, "error", err)
		return false
	}
	return b.store.WriteFile(BlockPath(lb.ID), data)
}

// DeleteLocalBlock removes the descriptor for id.
func (b *Blocks) DeleteLocalBlock(id string) bool {
	return b.store.DeleteFile(BlockPath(id))
}

func (b *Blocks) decode(p string) (LocalBlock, bool) {
	data := b.store.ReadFile(p)
	if data == nil {
		b.log.Warn("unreadable block descriptor", "path", p)
		return LocalBlock{}, false
	}
	var lb LocalBlock
	if err := json.Unmarshal(data, &lb); err != nil {
		b.log.Warn("malformed block descriptor", "path", p, "error", err)
		return LocalBlock{}, false
	}
	if lb.ID == "" {
		b.log.Warn("block descriptor without id", "path", p)
		return LocalBlock{}, false
	}
	lb.ID = strings.ToLower(lb.ID)
	return lb, true
}
