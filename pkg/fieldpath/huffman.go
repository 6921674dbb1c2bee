package fieldpath

import (
	"container/heap"

	"github.com/ssargent/replaykit/pkg/bitreader"
)

// lookupBits is the width of the first-level decode table.
const lookupBits = 8

type huffNode struct {
	weight   int
	value    int // symbol for leaves, allocation order for internal nodes
	children [2]int32
	leaf     bool
}

type code struct {
	bits uint32 // first emitted bit in bit 0
	len  uint8
}

type lookupEntry struct {
	op   Op
	len  uint8 // 0 when the prefix does not finish a symbol
	node int32 // node to resume from when len == 0
}

// huffmanTable is built once from opTable weights.
type huffmanTable struct {
	nodes  []huffNode
	root   int32
	codes  [numOps]code
	lookup [1 << lookupBits]lookupEntry
}

var table = buildHuffman()

type nodeHeap struct {
	nodes []huffNode
	items []int32
}

func (h *nodeHeap) Len() int { return len(h.items) }

// Less orders by weight; equal weights pop the higher value first.
func (h *nodeHeap) Less(i, j int) bool {
	a, b := h.nodes[h.items[i]], h.nodes[h.items[j]]
	if a.weight == b.weight {
		return a.value >= b.value
	}
	return a.weight < b.weight
}

func (h *nodeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *nodeHeap) Push(x any) { h.items = append(h.items, x.(int32)) }

func (h *nodeHeap) Pop() any {
	n := len(h.items)
	x := h.items[n-1]
	h.items = h.items[:n-1]
	return x
}

func buildHuffman() *huffmanTable {
	t := &huffmanTable{}
	h := &nodeHeap{}
	for i, def := range opTable {
		w := def.weight
		if w == 0 {
			w = 1
		}
		t.nodes = append(t.nodes, huffNode{weight: w, value: i, leaf: true})
		h.items = append(h.items, int32(i))
	}
	h.nodes = t.nodes
	heap.Init(h)

	next := numOps
	for h.Len() > 1 {
		a := heap.Pop(h).(int32)
		b := heap.Pop(h).(int32)
		t.nodes = append(t.nodes, huffNode{
			weight:   t.nodes[a].weight + t.nodes[b].weight,
			value:    next,
			children: [2]int32{a, b},
		})
		next++
		h.nodes = t.nodes
		heap.Push(h, int32(len(t.nodes)-1))
	}
	t.root = heap.Pop(h).(int32)

	t.assignCodes(t.root, 0, 0)
	t.fillLookup()
	return t
}

func (t *huffmanTable) assignCodes(n int32, bits uint32, depth uint8) {
	node := t.nodes[n]
	if node.leaf {
		t.codes[node.value] = code{bits: bits, len: depth}
		return
	}
	t.assignCodes(node.children[0], bits, depth+1)
	t.assignCodes(node.children[1], bits|1<<depth, depth+1)
}

func (t *huffmanTable) fillLookup() {
	for prefix := range t.lookup {
		n := t.root
		entry := lookupEntry{}
		for i := 0; i < lookupBits; i++ {
			n = t.nodes[n].children[(prefix>>uint(i))&1]
			if t.nodes[n].leaf {
				entry = lookupEntry{op: Op(t.nodes[n].value), len: uint8(i + 1)}
				break
			}
		}
		if entry.len == 0 {
			entry.node = n
		}
		t.lookup[prefix] = entry
	}
}

// walk decodes bit by bit starting from node n.
func (t *huffmanTable) walk(r *bitreader.Reader, n int32) (Op, error) {
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		n = t.nodes[n].children[bit]
		if t.nodes[n].leaf {
			return Op(t.nodes[n].value), nil
		}
	}
}

// ReadOp reads one operation symbol.
func ReadOp(r *bitreader.Reader) (Op, error) {
	avail := min(r.RemainingBits(), lookupBits)
	prefix, err := r.PeekBits(avail)
	if err != nil {
		return 0, err
	}
	if avail < lookupBits {
		// short tail: only consume the symbol if it ends inside the buffer
		n := table.root
		for i := 0; i < avail; i++ {
			n = table.nodes[n].children[(prefix>>uint(i))&1]
			if table.nodes[n].leaf {
				return Op(table.nodes[n].value), r.SkipBits(i + 1)
			}
		}
		return 0, bitreader.ErrBufferExhausted
	}
	entry := table.lookup[prefix]
	if entry.len != 0 {
		return entry.op, r.SkipBits(int(entry.len))
	}
	if err := r.SkipBits(lookupBits); err != nil {
		return 0, err
	}
	return table.walk(r, entry.node)
}

// WriteOp appends the code for op.
func WriteOp(w *bitreader.Writer, op Op) {
	c := table.codes[op]
	w.WriteBits(uint64(c.bits), int(c.len))
}

// codeLen returns the number of bits used to encode op.
func codeLen(op Op) int {
	return int(table.codes[op].len)
}
