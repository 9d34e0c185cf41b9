// Package keycodec defines total ordering over the byte sequences used
// as store keys. Keys are compared unit by unit; an equal-length common
// prefix is broken by length (shorter sorts before longer). All four
// primitives are allocation-free and total: every pair of keys compares
// in exactly one of less/equal/greater.
package keycodec

// Less reports whether a sorts strictly before b.
func Less(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

// More reports whether a sorts strictly after b.
func More(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return len(a) > len(b)
}

// Equal reports whether a and b are the same key.
func Equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Geq reports whether a sorts at or after b.
func Geq(a, b []byte) bool {
	return !Less(a, b)
}
