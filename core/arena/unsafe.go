package arena

import "unsafe"

// unsafeString views a byte slice as a string without copying. The backing
// slice is arena-owned and is not mutated between being carved out by Bytes
// and the next Reset; after a Reset, later Bytes calls overwrite the same
// backing array.
func unsafeString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return *(*string)(unsafe.Pointer(&b))
}
