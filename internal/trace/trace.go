// Package trace reads, writes, generates and replays allocation traces in the
// malloc-lab format.
//
// A trace file starts with four header numbers, one per line:
//
//	<suggested heap size>
//	<number of block ids>
//	<number of operations>
//	<weight>
//
// followed by one operation per line:
//
//	a <id> <size>   allocate size bytes as block id
//	r <id> <size>   reallocate block id to size bytes
//	f <id>          free block id
//
// Blank lines and lines starting with '#' are ignored.
package trace

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joshuapare/heapkit/internal/sysmem"
)

// ErrSyntax indicates a malformed trace.
var ErrSyntax = errors.New("trace: syntax error")

// Kind is the operation letter.
type Kind byte

const (
	Alloc   Kind = 'a'
	Realloc Kind = 'r'
	Free    Kind = 'f'
)

func (k Kind) String() string {
	switch k {
	case Alloc:
		return "alloc"
	case Realloc:
		return "realloc"
	case Free:
		return "free"
	default:
		return fmt.Sprintf("Kind(%q)", byte(k))
	}
}

// Op is one trace operation. Size is unused for Free.
type Op struct {
	Kind Kind
	ID   int
	Size int
}

// Trace is a parsed trace file.
type Trace struct {
	Name          string // file base name, or empty
	SuggestedHeap int
	NumIDs        int
	Weight        int
	Ops           []Op
}

// ParseFile reads the trace at path through a read-only mapping.
func ParseFile(path string) (*Trace, error) {
	data, release, err := sysmem.MapFile(path)
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t.Name = filepath.Base(path)
	return t, nil
}

// Parse reads a trace from r. The header's operation count must match the
// number of operations, and every id must be below the header's id count.
func Parse(r io.Reader) (*Trace, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var (
		t      Trace
		header [4]int
		nHdr   int
		numOps int
		line   int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if nHdr < len(header) {
			v, err := strconv.Atoi(text)
			if err != nil || v < 0 {
				return nil, fmt.Errorf("%w: line %d: header value %q", ErrSyntax, line, text)
			}
			header[nHdr] = v
			nHdr++
			if nHdr == len(header) {
				t.SuggestedHeap, t.NumIDs, numOps, t.Weight = header[0], header[1], header[2], header[3]
				t.Ops = make([]Op, 0, min(numOps, 1<<20))
			}
			continue
		}

		op, err := parseOp(text)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrSyntax, line, err)
		}
		if op.ID >= t.NumIDs {
			return nil, fmt.Errorf("%w: line %d: id %d outside [0, %d)", ErrSyntax, line, op.ID, t.NumIDs)
		}
		t.Ops = append(t.Ops, op)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if nHdr < len(header) {
		return nil, fmt.Errorf("%w: incomplete header (%d of %d values)", ErrSyntax, nHdr, len(header))
	}
	if len(t.Ops) != numOps {
		return nil, fmt.Errorf("%w: header declares %d ops, found %d", ErrSyntax, numOps, len(t.Ops))
	}
	return &t, nil
}

func parseOp(text string) (Op, error) {
	fields := strings.Fields(text)
	if len(fields[0]) != 1 {
		return Op{}, fmt.Errorf("unknown op %q", fields[0])
	}

	op := Op{Kind: Kind(fields[0][0])}
	want := 3
	switch op.Kind {
	case Alloc, Realloc:
	case Free:
		want = 2
	default:
		return Op{}, fmt.Errorf("unknown op %q", fields[0])
	}
	if len(fields) != want {
		return Op{}, fmt.Errorf("%s takes %d fields, got %d", op.Kind, want, len(fields))
	}

	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 {
		return Op{}, fmt.Errorf("bad id %q", fields[1])
	}
	op.ID = id

	if want == 3 {
		size, err := strconv.Atoi(fields[2])
		if err != nil || size < 0 {
			return Op{}, fmt.Errorf("bad size %q", fields[2])
		}
		op.Size = size
	}
	return op, nil
}

// WriteTo writes t in trace file format.
func (t *Trace) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	write := func(format string, args ...any) error {
		c, err := fmt.Fprintf(bw, format, args...)
		n += int64(c)
		return err
	}

	if err := write("%d\n%d\n%d\n%d\n", t.SuggestedHeap, t.NumIDs, len(t.Ops), t.Weight); err != nil {
		return n, err
	}
	for _, op := range t.Ops {
		var err error
		if op.Kind == Free {
			err = write("f %d\n", op.ID)
		} else {
			err = write("%c %d %d\n", byte(op.Kind), op.ID, op.Size)
		}
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}
