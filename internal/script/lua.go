package script

import (
	"bytes"
	"fmt"

	"github.com/Shopify/go-lua"
)

const (
	luaGlobalTableName  = "_G"
	luaGlobalTableIndex = -2
	luaTableIndex       = -3
	luaChunkMode        = "b"
)

// Everything that reaches the filesystem or the process, plus the sources
// of nondeterminism that would break replay
var (
	luaExclude = [...]string{
		"io", "os", "debug", "package", "require", "dofile", "loadfile",
		"load", "print",
	}

	luaMathExclude = [...]string{"random", "randomseed"}
)

func newSandbox() *lua.State {
	L := lua.NewState()
	lua.OpenLibraries(L)
	L.Global(luaGlobalTableName)
	for _, name := range luaExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)

	L.Global("math")
	for _, name := range luaMathExclude {
		L.PushNil()
		L.SetField(luaGlobalTableIndex, name)
	}
	L.Pop(1)
	return L
}

func compile(name, src string) ([]byte, error) {
	L := newSandbox()
	if err := lua.LoadBuffer(L, src, name, "t"); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLuaLoad, name, err)
	}
	var buf bytes.Buffer
	if err := L.Dump(&buf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLuaLoad, name, err)
	}
	return buf.Bytes(), nil
}

// load runs the compiled chunk in L, defining the script's globals
func load(L *lua.State, name string, bytecode []byte) error {
	err := L.Load(bytes.NewReader(bytecode), name, luaChunkMode)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLuaLoad, name, err)
	}
	if err := L.ProtectedCall(0, 0, 0); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLuaExecution, name, err)
	}
	return nil
}

func goToLua(L *lua.State, value any) {
	switch v := value.(type) {
	case string:
		L.PushString(v)
	case bool:
		L.PushBoolean(v)
	case int:
		L.PushInteger(v)
	case int64:
		L.PushInteger(int(v))
	case float64:
		L.PushNumber(v)
	case []any:
		pushLuaArray(L, v)
	case map[string]any:
		pushLuaMap(L, v)
	case nil:
		L.PushNil()
	default:
		L.PushString(fmt.Sprintf("%v", v))
	}
}

func pushLuaArray(L *lua.State, arr []any) {
	L.CreateTable(len(arr), 0)
	for i, item := range arr {
		L.PushInteger(i + 1)
		goToLua(L, item)
		L.SetTable(luaTableIndex)
	}
}

func pushLuaMap(L *lua.State, m map[string]any) {
	L.CreateTable(0, len(m))
	for k, val := range m {
		L.PushString(k)
		goToLua(L, val)
		L.SetTable(luaTableIndex)
	}
}

func luaToGo(L *lua.State, index int) any {
	switch L.TypeOf(index) {
	case lua.TypeBoolean:
		return L.ToBoolean(index)
	case lua.TypeNumber:
		num, _ := L.ToNumber(index)
		return num
	case lua.TypeString:
		s, _ := L.ToString(index)
		return s
	case lua.TypeTable:
		return luaTableToAny(L, index)
	default:
		return nil
	}
}

// luaTableToAny converts a sequence into a slice and anything else into a
// map with string keys
func luaTableToAny(L *lua.State, index int) any {
	abs := L.AbsIndex(index)
	length := L.RawLength(abs)
	if length > 0 {
		arr := make([]any, length)
		for i := 1; i <= length; i++ {
			L.RawGetInt(abs, i)
			arr[i-1] = luaToGo(L, -1)
			L.Pop(1)
		}
		return arr
	}

	res := map[string]any{}
	L.PushNil()
	for L.Next(abs) {
		// ToString on a numeric key would convert it in place and
		// confuse Next
		L.PushValue(-2)
		key, _ := L.ToString(-1)
		L.Pop(1)
		res[key] = luaToGo(L, -1)
		L.Pop(1)
	}
	return res
}

func stringField(L *lua.State, index int, name string) string {
	L.Field(index, name)
	defer L.Pop(1)
	s, _ := L.ToString(-1)
	return s
}
