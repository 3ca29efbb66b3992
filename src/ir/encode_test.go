package ir

import (
	"reflect"
	"testing"
)

func TestModuleRoundTrip(t *testing.T) {
	i32 := IntT(true, 32)
	m := &Module{
		Name: "pair",
		Types: []TypeDef{
			{Name: "Pair", Body: StructT(false,
				Field{Name: "x", Mut: Mutable, Type: i32},
				Field{Name: "y", Mut: Immutable, Type: i32},
			)},
			{Name: "Blob"},
		},
		Headers: []GCHeader{
			{Type: 0, Mobility: Immobile, Mut: WriteOnce},
			{Type: 0, Mobility: Mobile, Mut: MutCustom, Custom: "refcounted"},
		},
		Globals: []Global{
			{Kind: GlobalVar, Name: "counter", Type: i32},
			{
				Kind: GlobalFunc,
				Name: "sum",
				Func: &Func{
					Params:   []VarID{0},
					Result:   i32,
					VarMin:   0,
					VarTypes: []*Type{NamedT(0)},
					Entry:    1,
					Blocks: []Block{{
						ID:   1,
						Term: Return(BinaryE(OpAdd, FieldE(0, 0), FieldE(0, 1))),
					}},
				},
			},
		},
	}

	b, err := EncodeModule(m)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeModule(b)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(m, got) {
		t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", m, got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := DecodeModule([]byte{0xc1, 0x00, 0x01}); err == nil {
		t.Fatal("expected an error for a corrupt payload")
	}
}
