package trace

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = `# short sample
20000
3
8
1
a 0 2040
a 1 2040
f 1
a 2 48
r 0 4072
f 0

f 2
r 1 10
`

func TestParse(t *testing.T) {
	tr, err := Parse(strings.NewReader(sampleTrace))
	require.NoError(t, err)

	assert.Equal(t, 20000, tr.SuggestedHeap)
	assert.Equal(t, 3, tr.NumIDs)
	assert.Equal(t, 1, tr.Weight)
	require.Len(t, tr.Ops, 8)
	assert.Equal(t, Op{Kind: Alloc, ID: 0, Size: 2040}, tr.Ops[0])
	assert.Equal(t, Op{Kind: Free, ID: 1}, tr.Ops[2])
	assert.Equal(t, Op{Kind: Realloc, ID: 0, Size: 4072}, tr.Ops[4])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"short header", "100\n2\n"},
		{"bad header", "100\nx\n1\n1\na 0 1\n"},
		{"negative header", "100\n-2\n1\n1\na 0 1\n"},
		{"unknown op", "100\n2\n1\n1\nm 0 1\n"},
		{"long op", "100\n2\n1\n1\nalloc 0 1\n"},
		{"missing size", "100\n2\n1\n1\na 0\n"},
		{"extra field on free", "100\n2\n1\n1\nf 0 4\n"},
		{"bad id", "100\n2\n1\n1\na x 1\n"},
		{"bad size", "100\n2\n1\n1\na 0 -4\n"},
		{"id out of range", "100\n2\n1\n1\na 2 1\n"},
		{"op count mismatch", "100\n2\n3\n1\na 0 1\nf 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestWriteTo_ParsesBack(t *testing.T) {
	orig := Generate(7, 500, 4096)

	var buf bytes.Buffer
	n, err := orig.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	got, err := Parse(&buf)
	require.NoError(t, err)
	got.Name = orig.Name
	assert.Equal(t, orig, got)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.rep")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrace), 0o644))

	tr, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sample.rep", tr.Name)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.rep"))
	require.Error(t, err)
}

func TestGenerate(t *testing.T) {
	a := Generate(42, 1000, 2048)
	b := Generate(42, 1000, 2048)
	assert.Equal(t, a, b, "same seed, same trace")
	assert.NotEqual(t, a.Ops, Generate(43, 1000, 2048).Ops)

	assert.LessOrEqual(t, len(a.Ops), 1000)
	assert.GreaterOrEqual(t, len(a.Ops), 999)
	assert.Positive(t, a.SuggestedHeap)

	live := map[int]bool{}
	for _, op := range a.Ops {
		require.Less(t, op.ID, a.NumIDs)
		switch op.Kind {
		case Alloc:
			require.False(t, live[op.ID])
			require.GreaterOrEqual(t, op.Size, 1)
			require.LessOrEqual(t, op.Size, 2048)
			live[op.ID] = true
		case Realloc:
			require.True(t, live[op.ID])
		case Free:
			require.True(t, live[op.ID])
			delete(live, op.ID)
		}
	}
	assert.Empty(t, live, "every block is freed")
}

func TestGenerate_Tiny(t *testing.T) {
	tr := Generate(1, 0, 0)
	require.Len(t, tr.Ops, 2)
	assert.Equal(t, Alloc, tr.Ops[0].Kind)
	assert.Equal(t, Free, tr.Ops[1].Kind)
	assert.Equal(t, 1, tr.Ops[0].Size)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "alloc", Alloc.String())
	assert.Equal(t, "realloc", Realloc.String())
	assert.Equal(t, "free", Free.String())
	assert.Equal(t, `Kind('x')`, Kind('x').String())
}
