package factoryseed

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
)

// emulatedConstant stands in for the hardware OTP fuse bank on QEMU/dev
// builds. It is intentionally fixed so tests are reproducible. It is used
// whenever TAConfig.FactorySeedSource is not "kms"; TAConfig.ProductionMode
// does not affect that choice.
var emulatedConstant = []byte("airaccount-emulated-factory-seed-root-v1")

const emulatedLabel = "airaccount/factory-seed/emulated/v1"

// Emulated derives a structurally identical, reproducible factory seed
// from a fixed constant via a labelled KDF, per spec §4.3's note that the
// emulated path must remain structurally identical to the production one.
type Emulated struct{}

// NewEmulated returns the development factory-seed source.
func NewEmulated() *Emulated { return &Emulated{} }

func (e *Emulated) FactorySeed(ctx context.Context) ([]byte, error) {
	mac := hmac.New(sha256.New, emulatedConstant)
	mac.Write([]byte(emulatedLabel))
	return mac.Sum(nil), nil
}
