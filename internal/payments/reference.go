package payments

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/speps/go-hashids/v2"
)

const referencePrefix = "TXN"

// ReferenceGenerator mints ref_id values for intents that arrive without one.
type ReferenceGenerator struct {
	hd  *hashids.HashID
	now func() time.Time
}

func NewReferenceGenerator(salt string) (*ReferenceGenerator, error) {
	hd := hashids.NewData()
	hd.Salt = salt
	hd.MinLength = 10
	h, err := hashids.NewWithData(hd)
	if err != nil {
		return nil, fmt.Errorf("reference generator: %w", err)
	}
	return &ReferenceGenerator{hd: h, now: time.Now}, nil
}

// Next returns TXN followed by a hash of the current time in milliseconds and a random
// component.
func (g *ReferenceGenerator) Next() (string, error) {
	id, err := g.hd.EncodeInt64([]int64{g.now().UnixMilli(), rand.Int64N(1000)})
	if err != nil {
		return "", fmt.Errorf("encode reference: %w", err)
	}
	return referencePrefix + id, nil
}
