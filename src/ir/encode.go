// encode.go serialises MidIR modules to and from their on-disk msgpack form.

package ir

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------------------
// ----- Constants -----
// ---------------------

// moduleSchemaVersion is incremented whenever the serialised Module layout
// changes incompatibly.
const moduleSchemaVersion uint16 = 1

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// moduleEnvelope wraps a Module with a schema version so stale files are
// rejected instead of misdecoded.
type moduleEnvelope struct {
	Schema uint16  `msgpack:"schema"`
	Module *Module `msgpack:"module"`
}

// ---------------------
// ----- functions -----
// ---------------------

// EncodeModule serialises m into its msgpack wire form.
func EncodeModule(m *Module) ([]byte, error) {
	env := moduleEnvelope{
		Schema: moduleSchemaVersion,
		Module: m,
	}
	b, err := msgpack.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("encode module %s: %w", m.Name, err)
	}
	return b, nil
}

// DecodeModule deserialises a module previously produced by EncodeModule.
func DecodeModule(b []byte) (*Module, error) {
	if _, err := safecast.Conv[uint32](len(b)); err != nil {
		return nil, fmt.Errorf("decode module: payload of %d bytes: %w", len(b), err)
	}
	var env moduleEnvelope
	if err := msgpack.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	if env.Schema != moduleSchemaVersion {
		return nil, fmt.Errorf("decode module: schema %d, want %d", env.Schema, moduleSchemaVersion)
	}
	if env.Module == nil {
		return nil, fmt.Errorf("decode module: empty envelope")
	}
	return env.Module, nil
}
