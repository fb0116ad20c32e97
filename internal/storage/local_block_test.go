package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlockRoundTrip(t *testing.T) {
	for name, s := range map[string]Store{
		"memory": NewMemoryStore(),
		"file":   mustFileStore(t),
	} {
		t.Run(name, func(t *testing.T) {
			blocks := NewBlocks(s, nil)
			lb := LocalBlock{ID: "Textures", Hash: "abc=", Files: []string{"t/a.png", "t/b.png"}}
			require.True(t, blocks.WriteLocalBlock(lb))
			assert.True(t, s.FileExists("blocks/textures.block"))

			got, ok := blocks.ReadLocalBlock("TEXTURES")
			require.True(t, ok)
			assert.Equal(t, "textures", got.ID)
			assert.Equal(t, "abc=", got.Hash)
			assert.ElementsMatch(t, lb.Files, got.Files)

			all := blocks.ReadLocalBlocks()
			require.Len(t, all, 1)
			assert.Equal(t, got, all[0])

			require.True(t, blocks.DeleteLocalBlock("textures"))
			_, ok = blocks.ReadLocalBlock("textures")
			assert.False(t, ok)
		})
	}
}

func TestReadLocalBlocksSkipsMalformed(t *testing.T) {
	s := NewMemoryStore()
	blocks := NewBlocks(s, nil)

	require.True(t, blocks.WriteLocalBlock(LocalBlock{ID: "good", Hash: "h"}))
	s.WriteFile("blocks/broken.block", []byte("{not json"))
	s.WriteFile("blocks/noid.block", []byte(`{"Hash":"x","Files":[]}`))
	s.WriteFile("blocks/ignored.txt", []byte(`{"Id":"ignored"}`))

	all := blocks.ReadLocalBlocks()
	require.Len(t, all, 1)
	assert.Equal(t, "good", all[0].ID)
	assert.Empty(t, all[0].Files)
}

func TestDescriptorFormat(t *testing.T) {
	s := NewMemoryStore()
	blocks := NewBlocks(s, nil)
	require.True(t, blocks.WriteLocalBlock(LocalBlock{ID: "a", Hash: "H1", Files: []string{"x"}}))
	assert.JSONEq(t, `{"Id":"a","Hash":"H1","Files":["x"]}`, s.ReadFileString("blocks/a.block"))
}

func mustFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}
