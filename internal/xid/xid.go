package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier, for example "cash-1b4e28ba...".
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}
