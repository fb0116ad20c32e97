package block

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// File is one file to pack into a container.
type File struct {
	Name string
	Data []byte
}

type headerFile struct {
	File  string `json:"File"`
	Begin uint64 `json:"Begin"`
	End   uint64 `json:"End"`
}

type header struct {
	ID    string       `json:"Id"`
	Files []headerFile `json:"Files"`
}

// Write writes a container holding files under identifier id.
func Write(w io.Writer, id string, files []File) error {
	h := header{ID: id, Files: make([]headerFile, 0, len(files))}
	var offset uint64
	for _, f := range files {
		size := uint64(len(f.Data))
		h.Files = append(h.Files, headerFile{File: f.Name, Begin: offset, End: offset + size})
		offset += size
	}

	hdr, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	if len(hdr) > math.MaxUint32 {
		return fmt.Errorf("header too large: %d bytes", len(hdr))
	}

	if err := binary.Write(w, binary.LittleEndian, uint32(len(hdr))); err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	for _, f := range files {
		if _, err := w.Write(f.Data); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return nil
}

// Marshal returns the container bytes for files.
func Marshal(id string, files []File) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, id, files); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
