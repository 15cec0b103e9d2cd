// Package list implements a circular, intrusive, doubly-linked list whose
// nodes are identified by 32-bit offsets.
//
// The link fields live inside the caller's own storage (for the allocator,
// inside the payload of each free chunk). The list only knows how to read and
// write them through the Links interface. The sentinel node is held by the
// List value itself and is addressed by the Head offset, so an empty list is a
// sentinel pointing at itself.
//
// Insert and Remove are O(1). Traversal walks the embedded links and needs no
// container beyond the storage that already holds the nodes.
package list

import "iter"

// Head is the offset of the sentinel. It is never a valid node offset.
const Head uint32 = 0xFFFFFFFF

// Links reads and writes the link fields embedded at a node offset.
type Links interface {
	Next(node uint32) uint32
	Prev(node uint32) uint32
	SetNext(node, v uint32)
	SetPrev(node, v uint32)
}

// List is a circular list threaded through embedded links.
// The zero value is not usable; call New or Init.
type List struct {
	links Links
	next  uint32 // sentinel's next
	prev  uint32 // sentinel's prev
	n     int
}

// New returns an empty list over links.
func New(links Links) *List {
	l := &List{}
	l.Init(links)
	return l
}

// Init resets l to an empty list over links.
func (l *List) Init(links Links) {
	l.links = links
	l.next = Head
	l.prev = Head
	l.n = 0
}

// Len returns the number of nodes in the list.
func (l *List) Len() int { return l.n }

// Empty reports whether the list holds only the sentinel.
func (l *List) Empty() bool { return l.next == Head }

// Front returns the first node, or Head when the list is empty.
func (l *List) Front() uint32 { return l.next }

// Back returns the last node, or Head when the list is empty.
func (l *List) Back() uint32 { return l.prev }

// Next returns the node after n, or Head at the end of the list.
func (l *List) Next(n uint32) uint32 { return l.getNext(n) }

// Prev returns the node before n, or Head at the start of the list.
func (l *List) Prev(n uint32) uint32 { return l.getPrev(n) }

// InsertHead links n directly after the sentinel.
func (l *List) InsertHead(n uint32) {
	first := l.next
	l.setPrev(first, n)
	l.setNext(n, first)
	l.setPrev(n, Head)
	l.next = n
	l.n++
}

// Remove unlinks n. n must currently be in l.
// The links stored at n are left as they were.
func (l *List) Remove(n uint32) {
	next, prev := l.getNext(n), l.getPrev(n)
	l.setPrev(next, prev)
	l.setNext(prev, next)
	l.n--
}

// All yields every node from front to back. The list must not be
// modified while the sequence is being consumed.
func (l *List) All() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		for n := l.next; n != Head; n = l.getNext(n) {
			if !yield(n) {
				return
			}
		}
	}
}

func (l *List) getNext(n uint32) uint32 {
	if n == Head {
		return l.next
	}
	return l.links.Next(n)
}

func (l *List) getPrev(n uint32) uint32 {
	if n == Head {
		return l.prev
	}
	return l.links.Prev(n)
}

func (l *List) setNext(n, v uint32) {
	if n == Head {
		l.next = v
		return
	}
	l.links.SetNext(n, v)
}

func (l *List) setPrev(n, v uint32) {
	if n == Head {
		l.prev = v
		return
	}
	l.links.SetPrev(n, v)
}
