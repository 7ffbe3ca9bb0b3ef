package world

// Catalog provides the static unit data the simulation reads. The data
// package's unit table implements it; tests substitute small fixtures.
// Catalog content is immutable and peers verify its hash at handshake, so
// it stays out of the state checksum.
type Catalog interface {
	HasUnitKind(kind uint16) bool
	UnitSpeed(kind uint16) int32
	UnitCost(kind uint16) int64
	UnitOrdersMask(kind uint16) uint8
}
