// Package block reads and writes content block containers.
//
// A container is a 4-byte little-endian header size, a JSON header of that
// many bytes, then the concatenated file payload ("the blob"):
//
//	[uint32 LE HeaderSize][HeaderSize bytes JSON][blob]
//
// The header names the block and lists each file with Begin/End offsets
// relative to the start of the blob.
package block

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/javanhut/contentsync/internal/wire"
)

const sizePrefixLen = 4

// TruncatedError reports a container shorter than its declared header.
type TruncatedError struct {
	Need uint64
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("block: truncated container: need %d bytes, have %d", e.Need, e.Have)
}

// HeaderError reports a structurally complete container whose header is unusable.
type HeaderError struct {
	Reason string
}

func (e *HeaderError) Error() string {
	return "block: bad header: " + e.Reason
}

// ContentEntry locates one file inside the container buffer.
// Begin and End are absolute offsets into the buffer passed to ReadHeader.
type ContentEntry struct {
	File  string
	Begin uint64
	End   uint64
}

// Len returns the file size.
func (e ContentEntry) Len() uint64 {
	return e.End - e.Begin
}

// Skipped describes a header file entry that was ignored.
type Skipped struct {
	Index  int
	Reason string
}

// ContentBlock is a decoded container. It keeps the buffer it was read from;
// Bytes slices into it without copying.
type ContentBlock struct {
	ID      string
	Entries []ContentEntry
	Skipped []Skipped

	data []byte
}

// Bytes returns the contents of e.
func (b *ContentBlock) Bytes(e ContentEntry) []byte {
	return b.data[e.Begin:e.End:e.End]
}

// Files returns the distinct file paths of the block, in header order.
func (b *ContentBlock) Files() []string {
	seen := make(map[string]bool, len(b.Entries))
	files := make([]string, 0, len(b.Entries))
	for _, e := range b.Entries {
		if seen[e.File] {
			continue
		}
		seen[e.File] = true
		files = append(files, e.File)
	}
	return files
}

// ReadHeader decodes the container in data.
func ReadHeader(data []byte) (*ContentBlock, error) {
	if len(data) < sizePrefixLen {
		return nil, &TruncatedError{Need: sizePrefixLen, Have: len(data)}
	}
	headerSize := uint64(binary.LittleEndian.Uint32(data[:sizePrefixLen]))
	blobStart := sizePrefixLen + headerSize
	if uint64(len(data)) < blobStart {
		return nil, &TruncatedError{Need: blobStart, Have: len(data)}
	}

	header := data[sizePrefixLen:blobStart]
	if !gjson.ValidBytes(header) {
		return nil, &HeaderError{Reason: "invalid JSON"}
	}
	root := gjson.ParseBytes(header)
	id := root.Get("Id")
	if id.Type != gjson.String {
		return nil, &HeaderError{Reason: "missing string field Id"}
	}
	if id.Str == "" {
		return nil, &HeaderError{Reason: "empty Id"}
	}
	files := root.Get("Files")
	if !files.IsArray() {
		return nil, &HeaderError{Reason: "missing Files array"}
	}

	blobLen := uint64(len(data)) - blobStart
	b := &ContentBlock{
		ID:   strings.ToLower(id.Str),
		data: data,
	}
	for i, f := range files.Array() {
		name := f.Get("File")
		if name.Type != gjson.String || name.Str == "" {
			b.Skipped = append(b.Skipped, Skipped{Index: i, Reason: "missing string field File"})
			continue
		}
		begin, okBegin := wire.Uint(f.Get("Begin"))
		end, okEnd := wire.Uint(f.Get("End"))
		if !okBegin || !okEnd {
			b.Skipped = append(b.Skipped, Skipped{Index: i, Reason: "missing offset for " + name.Str})
			continue
		}
		if begin > end || end > blobLen {
			b.Skipped = append(b.Skipped, Skipped{
				Index:  i,
				Reason: fmt.Sprintf("range [%d,%d) of %s outside %d-byte blob", begin, end, name.Str, blobLen),
			})
			continue
		}
		b.Entries = append(b.Entries, ContentEntry{
			File:  name.Str,
			Begin: blobStart + begin,
			End:   blobStart + end,
		})
	}
	return b, nil
}
