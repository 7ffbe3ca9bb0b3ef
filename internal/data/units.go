// Package data loads the static tables the simulation consumes. Tables are
// immutable after load; the unit catalog additionally exposes a hash that
// peers compare at handshake, since divergent tables cannot stay in lockstep.
package data

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/gridsim/server/internal/net/wire"
	"github.com/gridsim/server/internal/world"
)

// UnitKind holds static data for a unit type loaded from YAML.
type UnitKind struct {
	ID     uint16   `yaml:"id"`
	Name   string   `yaml:"name"`
	Speed  int32    `yaml:"speed"` // grid cells per tick
	Cost   int64    `yaml:"cost"`
	Orders []string `yaml:"orders"` // allowed standing orders

	// OrdersMask is Orders folded into bits at load time.
	OrdersMask uint8 `yaml:"-"`
}

type unitListFile struct {
	Units []UnitKind `yaml:"units"`
}

var orderNameMap = map[string]uint8{
	"hold":   world.OrderHold,
	"patrol": world.OrderPatrol,
}

// UnitTable holds all unit kinds indexed by id.
type UnitTable struct {
	kinds  map[uint16]*UnitKind
	byName map[string]*UnitKind
	hash   [32]byte
}

// LoadUnitTable loads the unit catalog from a YAML file.
func LoadUnitTable(path string) (*UnitTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit catalog: %w", err)
	}
	var f unitListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse unit catalog: %w", err)
	}
	return buildUnitTable(f.Units)
}

func buildUnitTable(kinds []UnitKind) (*UnitTable, error) {
	t := &UnitTable{
		kinds:  make(map[uint16]*UnitKind, len(kinds)),
		byName: make(map[string]*UnitKind, len(kinds)),
	}
	for i := range kinds {
		k := &kinds[i]
		if k.ID == 0 {
			return nil, fmt.Errorf("unit %q: id 0 is reserved", k.Name)
		}
		if k.Name == "" {
			return nil, fmt.Errorf("unit %d: empty name", k.ID)
		}
		if k.Speed < 1 {
			return nil, fmt.Errorf("unit %q: speed %d, want >= 1", k.Name, k.Speed)
		}
		if k.Cost < 0 {
			return nil, fmt.Errorf("unit %q: negative cost %d", k.Name, k.Cost)
		}
		if _, dup := t.kinds[k.ID]; dup {
			return nil, fmt.Errorf("unit %q: duplicate id %d", k.Name, k.ID)
		}
		if _, dup := t.byName[k.Name]; dup {
			return nil, fmt.Errorf("unit %q: duplicate name", k.Name)
		}
		for _, o := range k.Orders {
			bit, ok := orderNameMap[o]
			if !ok {
				return nil, fmt.Errorf("unit %q: unknown order %q", k.Name, o)
			}
			k.OrdersMask |= bit
		}
		t.kinds[k.ID] = k
		t.byName[k.Name] = k
	}
	t.hash = hashKinds(t.Kinds())
	return t, nil
}

// hashKinds digests the catalog fields the simulation reads, in id order.
func hashKinds(kinds []*UnitKind) [32]byte {
	w := wire.NewWriter()
	w.WriteH(uint16(len(kinds)))
	for _, k := range kinds {
		w.WriteH(k.ID)
		w.WriteS(k.Name)
		w.WriteD(k.Speed)
		w.WriteQS(k.Cost)
		w.WriteC(k.OrdersMask)
	}
	return blake2b.Sum256(w.Bytes())
}

// Get returns the kind with the given id, or nil.
func (t *UnitTable) Get(id uint16) *UnitKind {
	return t.kinds[id]
}

// GetByName returns the kind with the given name, or nil.
func (t *UnitTable) GetByName(name string) *UnitKind {
	return t.byName[name]
}

// Kinds returns all kinds sorted by id.
func (t *UnitTable) Kinds() []*UnitKind {
	out := make([]*UnitKind, 0, len(t.kinds))
	for _, k := range t.kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *UnitTable) Count() int {
	return len(t.kinds)
}

// Hash returns the catalog digest peers compare at handshake.
func (t *UnitTable) Hash() [32]byte {
	return t.hash
}

// The methods below implement world.Catalog.

func (t *UnitTable) HasUnitKind(kind uint16) bool {
	_, ok := t.kinds[kind]
	return ok
}

func (t *UnitTable) UnitSpeed(kind uint16) int32 {
	if k, ok := t.kinds[kind]; ok {
		return k.Speed
	}
	return 0
}

func (t *UnitTable) UnitCost(kind uint16) int64 {
	if k, ok := t.kinds[kind]; ok {
		return k.Cost
	}
	return 0
}

func (t *UnitTable) UnitOrdersMask(kind uint16) uint8 {
	if k, ok := t.kinds[kind]; ok {
		return k.OrdersMask
	}
	return 0
}
