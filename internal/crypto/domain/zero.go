package domain

import "github.com/awnumar/memguard"

// Zero overwrites b with zeros. Use it on every slice that briefly held key bytes.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	memguard.WipeBytes(b)
}
