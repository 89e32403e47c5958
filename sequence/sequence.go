package sequence

// Sequence hands out increasing integer IDs.
type Sequence struct {
	current int
}

// New returns a sequence whose first ID is start.
func New(start int) *Sequence {
	return &Sequence{current: start}
}

// Returns the current ID, then advances.
func (s *Sequence) Next() int {
	id := s.current
	s.current++
	return id
}

// Memoized maps content hashes to integer IDs. The first time a hash
// is seen it receives the next ID; later lookups return the same ID.
type Memoized struct {
	seq   *Sequence
	cache map[string]int
}

func NewMemoized() *Memoized {
	return &Memoized{
		seq:   New(1),
		cache: map[string]int{},
	}
}

func (m *Memoized) Get(hash string) int {
	id, found := m.cache[hash]
	if !found {
		id = m.seq.Next()
		m.cache[hash] = id
	}
	return id
}

func (m *Memoized) HaveSeen(hash string) bool {
	_, found := m.cache[hash]
	return found
}
