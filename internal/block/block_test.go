package block

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// container assembles a container by hand so the reader is tested
// independently of Write.
func container(header string, blob []byte) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(header)))
	buf.WriteString(header)
	buf.Write(blob)
	return buf.Bytes()
}

func TestReadHeaderHandBuilt(t *testing.T) {
	blob := []byte("HELLOworld!!")
	data := container(`{"Id":"Block1","Files":[
		{"File":"greet/hello.txt","Begin":0,"End":5},
		{"File":"greet/world.txt","Begin":5,"End":12}
	]}`, blob)

	b, err := ReadHeader(data)
	require.NoError(t, err)
	assert.Equal(t, "block1", b.ID)
	require.Len(t, b.Entries, 2)

	assert.Equal(t, "HELLO", string(b.Bytes(b.Entries[0])))
	assert.Equal(t, "world!!", string(b.Bytes(b.Entries[1])))
	assert.Equal(t, "HELLO", string(data[b.Entries[0].Begin:b.Entries[0].End]))
	assert.EqualValues(t, 7, b.Entries[1].Len())
	assert.Equal(t, []string{"greet/hello.txt", "greet/world.txt"}, b.Files())
}

func TestReadHeaderSkipsBadEntries(t *testing.T) {
	data := container(`{"Id":"x","Files":[
		{"File":"ok","Begin":0,"End":2},
		{"Begin":0,"End":1},
		{"File":"noend","Begin":0},
		{"File":"neg","Begin":-1,"End":1},
		{"File":"inverted","Begin":2,"End":1},
		{"File":"past","Begin":0,"End":99}
	]}`, []byte("abc"))

	b, err := ReadHeader(data)
	require.NoError(t, err)
	require.Len(t, b.Entries, 1)
	assert.Equal(t, "ok", b.Entries[0].File)
	assert.Len(t, b.Skipped, 5)
}

func TestReadHeaderTruncated(t *testing.T) {
	full := container(`{"Id":"x","Files":[]}`, nil)
	for _, n := range []int{0, 3, 4, len(full) - 1} {
		_, err := ReadHeader(full[:n])
		var te *TruncatedError
		require.True(t, errors.As(err, &te), "len %d: expected TruncatedError, got %v", n, err)
		assert.Equal(t, n, te.Have)
	}
}

func TestReadHeaderBadHeader(t *testing.T) {
	for name, hdr := range map[string]string{
		"not json":  `{"Id":`,
		"no id":     `{"Files":[]}`,
		"id number": `{"Id":3,"Files":[]}`,
		"empty id":  `{"Id":"","Files":[]}`,
		"no files":  `{"Id":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadHeader(container(hdr, nil))
			var he *HeaderError
			assert.True(t, errors.As(err, &he), "expected HeaderError, got %v", err)
		})
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	files := []File{
		{Name: "a/one.bin", Data: []byte{1, 2, 3}},
		{Name: "a/empty.bin", Data: nil},
		{Name: "b/two.txt", Data: []byte("two")},
	}
	data, err := Marshal("Mixed", files)
	require.NoError(t, err)

	b, err := ReadHeader(data)
	require.NoError(t, err)
	assert.Equal(t, "mixed", b.ID)
	require.Len(t, b.Entries, len(files))
	for i, f := range files {
		assert.Equal(t, f.Name, b.Entries[i].File)
		assert.Equal(t, len(f.Data), len(b.Bytes(b.Entries[i])))
		assert.True(t, bytes.Equal(f.Data, b.Bytes(b.Entries[i])) || len(f.Data) == 0)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("content block payload "), 200)
	for _, algo := range []CompressAlgo{CompressGzip, CompressZlib, CompressZstd} {
		packed, err := Compress(payload, algo)
		require.NoError(t, err)
		assert.Less(t, len(packed), len(payload))

		out, err := Decompress(packed)
		require.NoError(t, err, "algo %d", algo)
		assert.Equal(t, payload, out)
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	_, err := Decompress([]byte("plain text, not compressed"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	packed, err := Compress([]byte("some data to truncate for the test"), CompressGzip)
	require.NoError(t, err)
	_, err = Decompress(packed[:len(packed)/2])
	assert.Error(t, err)
}

func BenchmarkReadHeader(b *testing.B) {
	files := make([]File, 256)
	for i := range files {
		files[i] = File{Name: "dir/file" + string(rune('a'+i%26)), Data: bytes.Repeat([]byte{byte(i)}, 512)}
	}
	data, err := Marshal("bench", files)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ReadHeader(data); err != nil {
			b.Fatal(err)
		}
	}
}
