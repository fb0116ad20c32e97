// Package publish turns a source directory into the layout a content server
// hosts: one compressed block container per top-level subdirectory, plus
// the manifest listing them.
package publish

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/javanhut/contentsync/internal/block"
	"github.com/javanhut/contentsync/internal/manifest"
	"github.com/javanhut/contentsync/internal/storage"
	"github.com/javanhut/contentsync/internal/updater"
)

// ManifestFile is the manifest's name inside the output directory.
const ManifestFile = "manifest"

// Options configures Build.
type Options struct {
	Algo   block.CompressAlgo
	Logger *slog.Logger
}

// Result summarizes a Build.
type Result struct {
	Entries         []manifest.Entry
	CompressedBytes uint64
}

// Build packs every top-level directory of src into out/blocks/<id>.bin and
// writes out/manifest. Block identifiers are the lowercased directory names;
// file paths inside a block are relative to src.
func Build(src, out string, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	dirs, err := os.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(out, "blocks"), 0755); err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}

	res := &Result{}
	seen := make(map[string]string)
	for _, d := range dirs {
		if !d.IsDir() {
			log.Warn("skipping top-level file; only directories become blocks", "path", d.Name())
			continue
		}
		id := strings.ToLower(d.Name())
		if id == storage.BlocksDir {
			log.Warn("skipping directory; its files would collide with installed block descriptors", "path", d.Name())
			continue
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("directories %q and %q map to the same block id %q", prev, d.Name(), id)
		}
		seen[id] = d.Name()

		entry, size, err := buildBlock(src, d.Name(), id, out, opts.Algo)
		if err != nil {
			return nil, err
		}
		log.Info("packed block", "block", id, "bytes", entry.Size, "compressed", size)
		res.Entries = append(res.Entries, entry)
		res.CompressedBytes += size
	}

	data, err := manifest.Encode(res.Entries)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(out, ManifestFile), data, 0644); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}
	return res, nil
}

func buildBlock(src, dir, id, out string, algo block.CompressAlgo) (manifest.Entry, uint64, error) {
	files, err := collect(src, dir)
	if err != nil {
		return manifest.Entry{}, 0, err
	}
	payload, err := block.Marshal(id, files)
	if err != nil {
		return manifest.Entry{}, 0, fmt.Errorf("pack %s: %w", id, err)
	}
	compressed, err := block.Compress(payload, algo)
	if err != nil {
		return manifest.Entry{}, 0, fmt.Errorf("compress %s: %w", id, err)
	}

	url := path.Join("blocks", id+".bin")
	if err := os.WriteFile(filepath.Join(out, filepath.FromSlash(url)), compressed, 0644); err != nil {
		return manifest.Entry{}, 0, fmt.Errorf("write %s: %w", url, err)
	}
	return manifest.Entry{
		ID:   id,
		URL:  url,
		Hash: updater.PayloadHash(payload),
		Size: uint64(len(payload)),
	}, uint64(len(compressed)), nil
}

// collect reads every regular file under src/dir in lexical order.
func collect(src, dir string) ([]block.File, error) {
	var files []block.File
	root := filepath.Join(src, dir)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		files = append(files, block.File{Name: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", dir, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}
