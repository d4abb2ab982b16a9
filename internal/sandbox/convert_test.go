package sandbox

import (
	"context"
	"reflect"
	"testing"

	glua "github.com/yuin/gopher-lua"
)

func TestToLuaScalars(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	tests := []struct {
		name string
		in   any
		want glua.LValue
	}{
		{name: "nil", in: nil, want: glua.LNil},
		{name: "bool", in: true, want: glua.LTrue},
		{name: "int", in: 42, want: glua.LNumber(42)},
		{name: "int64", in: int64(-7), want: glua.LNumber(-7)},
		{name: "uint32", in: uint32(9), want: glua.LNumber(9)},
		{name: "float64", in: 1.5, want: glua.LNumber(1.5)},
		{name: "string", in: "hello", want: glua.LString("hello")},
		{name: "bytes", in: []byte("raw"), want: glua.LString("raw")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToLua(L, tt.in); got != tt.want {
				t.Errorf("ToLua(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestToLuaSlice(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	v := ToLua(L, []any{"a", 2, true})
	tbl, ok := v.(*glua.LTable)
	if !ok {
		t.Fatalf("ToLua(slice) = %T, want table", v)
	}
	if got := tbl.RawGetInt(1); got.String() != "a" {
		t.Errorf("t[1] = %v, want a", got)
	}
	if got, ok := tbl.RawGetInt(2).(glua.LNumber); !ok || float64(got) != 2 {
		t.Errorf("t[2] = %v, want 2", tbl.RawGetInt(2))
	}
	if got := tbl.RawGetInt(3); got != glua.LTrue {
		t.Errorf("t[3] = %v, want true", got)
	}
}

func TestToLuaMap(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	v := ToLua(L, map[string]any{"name": "clock", "depth": 3})
	tbl, ok := v.(*glua.LTable)
	if !ok {
		t.Fatalf("ToLua(map) = %T, want table", v)
	}
	if got := tbl.RawGetString("name"); got.String() != "clock" {
		t.Errorf("t.name = %v, want clock", got)
	}
	if got, ok := tbl.RawGetString("depth").(glua.LNumber); !ok || float64(got) != 3 {
		t.Errorf("t.depth = %v, want 3", tbl.RawGetString("depth"))
	}
}

func TestToLuaStruct(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	type widgetInfo struct {
		Name    string `json:"name"`
		Count   int
		ignored string
	}

	v := ToLua(L, widgetInfo{Name: "clock", Count: 2, ignored: "x"})
	tbl, ok := v.(*glua.LTable)
	if !ok {
		t.Fatalf("ToLua(struct) = %T, want table", v)
	}
	if got := tbl.RawGetString("name"); got.String() != "clock" {
		t.Errorf("t.name = %v, want clock (json tag)", got)
	}
	if got, ok := tbl.RawGetString("Count").(glua.LNumber); !ok || float64(got) != 2 {
		t.Errorf("t.Count = %v, want 2", tbl.RawGetString("Count"))
	}
	if got := tbl.RawGetString("ignored"); got != glua.LNil {
		t.Errorf("t.ignored = %v, want nil for unexported field", got)
	}
}

func TestToLuaPointer(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	n := 5
	if got, ok := ToLua(L, &n).(glua.LNumber); !ok || float64(got) != 5 {
		t.Errorf("ToLua(*int) = %v, want 5", ToLua(L, &n))
	}

	var nothing *int
	if got := ToLua(L, nothing); got != glua.LNil {
		t.Errorf("ToLua(nil pointer) = %v, want nil", got)
	}
}

func TestFromLuaNumbers(t *testing.T) {
	if got := FromLua(glua.LNumber(3)); got != int64(3) {
		t.Errorf("FromLua(3) = %#v, want int64(3)", got)
	}
	if got := FromLua(glua.LNumber(3.5)); got != 3.5 {
		t.Errorf("FromLua(3.5) = %#v, want float64(3.5)", got)
	}
}

func TestFromLuaTable(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	if err := L.DoString(`v = {1, "two", true, {a = 1.5}}`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	got := FromLua(L.GetGlobal("v"))
	want := []any{int64(1), "two", true, map[string]any{"a": 1.5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FromLua() = %#v, want %#v", got, want)
	}
}

func TestFromLuaSparseTableIsMap(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	if err := L.DoString(`v = {}; v[1] = "a"; v[3] = "c"`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	got, ok := FromLua(L.GetGlobal("v")).(map[string]any)
	if !ok {
		t.Fatalf("FromLua(sparse table) = %T, want map", FromLua(L.GetGlobal("v")))
	}
	if got["1"] != "a" || got["3"] != "c" {
		t.Errorf("FromLua(sparse table) = %#v", got)
	}
}

func TestFromLuaCircularTable(t *testing.T) {
	L := glua.NewState()
	defer L.Close()

	if err := L.DoString(`t = {}; t.self = t`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	got, ok := FromLua(L.GetGlobal("t")).(map[string]any)
	if !ok {
		t.Fatalf("FromLua(circular table) = %T, want map", FromLua(L.GetGlobal("t")))
	}
	if got["self"] != nil {
		t.Errorf("circular reference = %#v, want nil", got["self"])
	}
}

func TestConversionRoundTripThroughScript(t *testing.T) {
	state := New("widgetA")
	defer state.Close()

	state.SetGlobalValue("input", map[string]any{
		"items": []any{"a", "b"},
		"limit": 2,
	})

	err := state.DoString(context.Background(), `
		output = { first = input.items[1], limit = input.limit }
	`)
	if err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	got := FromLua(state.GetGlobal("output"))
	want := map[string]any{"first": "a", "limit": int64(2)}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %#v, want %#v", got, want)
	}
}
