package annotation

import "strconv"

// UnreadCount is the count of unseen messages in an annotation's discussion,
// or the sentinel All meaning no further detail is available to this viewer.
// The sentinel doubles as a membership proxy: a viewer who has never read any
// of a discussion is presumed not to be part of it.
type UnreadCount struct {
	n   int
	all bool
}

// UnreadAll returns the "All" sentinel.
func UnreadAll() UnreadCount { return UnreadCount{all: true} }

// Unread returns a concrete count.
func Unread(n int) UnreadCount {
	if n < 0 {
		n = 0
	}
	return UnreadCount{n: n}
}

// IsAll reports whether this is the sentinel value.
func (u UnreadCount) IsAll() bool { return u.all }

// Count returns the concrete count, 0 for the sentinel.
func (u UnreadCount) Count() int {
	if u.all {
		return 0
	}
	return u.n
}

// Some reports whether anything is unread. The sentinel counts as unread,
// matching the permissive truthiness the filter flag relies on.
func (u UnreadCount) Some() bool { return u.all || u.n > 0 }

// String renders "All" or the decimal count.
func (u UnreadCount) String() string {
	if u.all {
		return "All"
	}
	return strconv.Itoa(u.n)
}

// MarshalJSON encodes the sentinel as the string "All", counts as numbers.
func (u UnreadCount) MarshalJSON() ([]byte, error) {
	if u.all {
		return []byte(`"All"`), nil
	}
	return []byte(strconv.Itoa(u.n)), nil
}
