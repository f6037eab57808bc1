package broadcast

import "github.com/google/uuid"

// OriginTag names one execution context. Every envelope a Store writes carries
// its tag so the Store can recognize and drop its own echoes.
type OriginTag string

// NewOriginTag returns a fresh random tag.
func NewOriginTag() OriginTag {
	return OriginTag(uuid.NewString())
}
