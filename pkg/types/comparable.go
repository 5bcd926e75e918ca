package types

// Comparable is the ordering interface every memtable key type satisfies,
// kept from the teacher's pkg/types so the adapted B+Tree (pkg/btree) can
// stay generic over the key representation. stonedb's only production
// implementation is EncodedKey (key.go); the scalar key kinds the teacher
// shipped (IntKey, VarcharKey, FloatKey, BoolKey, DateKey) do not survive
// the move to opaque pk/sk byte keys and are not carried forward.
type Comparable interface {
	Compare(other Comparable) int // -1 if <, 0 if ==, 1 if >
}
