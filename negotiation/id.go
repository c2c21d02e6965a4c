package negotiation

import (
	"sync"

	gonanoid "github.com/jaevor/go-nanoid"
)

var (
	idGenOnce sync.Once
	idGen     func() string
)

// NewPeerID mints a short, URL-safe unique peer id, the same generator
// family the teacher declares (but never wires up) in its go.mod.
func NewPeerID() string {
	idGenOnce.Do(func() {
		gen, err := gonanoid.Standard(12)
		if err != nil {
			panic(err)
		}
		idGen = gen
	})
	return idGen()
}
