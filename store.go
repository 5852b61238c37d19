package history

// recordStore is the bounded, indexable record sequence plus the position
// pointer. It is not synchronized; History guards it.
//
// Invariants after every mutation:
//   - len(records) >= 1
//   - 0 <= cur < len(records)
//   - maxLength == 0 || len(records) <= maxLength
type recordStore[T any] struct {
	records   []Record[T]
	cur       int
	maxLength int
}

type pushResult[T any] struct {
	discarded int
	evicted   *Record[T]
}

func newRecordStore[T any](initial Record[T], maxLength int) *recordStore[T] {
	return &recordStore[T]{
		records:   []Record[T]{initial},
		maxLength: maxLength,
	}
}

// push drops the redo tail, appends rec and, when the result exceeds the
// capacity, evicts the oldest record instead of advancing the pointer.
func (s *recordStore[T]) push(rec Record[T]) pushResult[T] {
	result := pushResult[T]{discarded: len(s.records) - s.cur - 1}

	next := make([]Record[T], s.cur+1, s.cur+2)
	copy(next, s.records[:s.cur+1])
	next = append(next, rec)

	if s.maxLength > 0 && len(next) > s.maxLength {
		evicted := next[0]
		result.evicted = &evicted
		next = next[1:]
	} else {
		s.cur++
	}
	s.records = next
	return result
}

// replace overwrites the head and returns the record it displaced.
func (s *recordStore[T]) replace(rec Record[T]) Record[T] {
	previous := s.records[s.cur]
	s.records[s.cur] = rec
	return previous
}

// reset collapses the sequence to rec alone.
func (s *recordStore[T]) reset(rec Record[T]) int {
	dropped := len(s.records)
	s.records = []Record[T]{rec}
	s.cur = 0
	return dropped
}

// load swaps in a restored sequence, evicting the oldest records beyond the
// capacity. It returns the number of records evicted.
func (s *recordStore[T]) load(records []Record[T], cur int) int {
	evicted := 0
	if s.maxLength > 0 && len(records) > s.maxLength {
		evicted = len(records) - s.maxLength
		records = records[evicted:]
		cur -= evicted
		if cur < 0 {
			cur = 0
		}
	}
	s.records = append([]Record[T](nil), records...)
	s.cur = cur
	return evicted
}

func (s *recordStore[T]) recordAt(i int) (Record[T], bool) {
	if i < 0 || i >= len(s.records) {
		return Record[T]{}, false
	}
	return s.records[i], true
}

func (s *recordStore[T]) head() Record[T] {
	return s.records[s.cur]
}

func (s *recordStore[T]) len() int {
	return len(s.records)
}

func (s *recordStore[T]) canUndo() bool {
	return s.cur > 0
}

func (s *recordStore[T]) canRedo() bool {
	return s.cur+1 < len(s.records)
}

func (s *recordStore[T]) snapshot() []Record[T] {
	return append([]Record[T](nil), s.records...)
}
