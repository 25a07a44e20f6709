package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

type (
	// Workflow is a parsed Lua workflow
	Workflow struct {
		name     string
		bytecode []byte
		def      *relay.Definition
	}

	// execution binds one run to the Lua state executing it
	execution struct {
		ctx context.Context
		run *relay.Run
		err error
	}
)

const (
	// Extension is the file extension of workflow scripts
	Extension = ".lua"

	workflowGlobal = "workflow"
	runGlobal      = "run"
)

var (
	ErrLuaLoad         = errors.New("lua load error")
	ErrLuaExecution    = errors.New("lua execution error")
	ErrNoWorkflowTable = errors.New("script does not define a workflow table")
	ErrNoRunFunction   = errors.New("script does not define a run function")
	ErrInvalidField    = errors.New("invalid input field")
)

// Parse compiles a workflow script and reads its declaration
func Parse(name, src string) (*Workflow, error) {
	bytecode, err := compile(name, src)
	if err != nil {
		return nil, err
	}

	L := newSandbox()
	if err := load(L, name, bytecode); err != nil {
		return nil, err
	}

	L.Global(runGlobal)
	isFunc := L.IsFunction(-1)
	L.Pop(1)
	if !isFunc {
		return nil, fmt.Errorf("%w: %s", ErrNoRunFunction, name)
	}

	L.Global(workflowGlobal)
	defer L.Pop(1)
	if !L.IsTable(-1) {
		return nil, fmt.Errorf("%w: %s", ErrNoWorkflowTable, name)
	}

	wf := &Workflow{name: name, bytecode: bytecode}
	input, err := inputSchema(L)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	wf.def = &relay.Definition{
		Slug:        api.Slug(stringField(L, -1, "slug")),
		Title:       stringField(L, -1, "title"),
		Description: stringField(L, -1, "description"),
		Input:       input,
		Handler:     wf.handle,
	}
	return wf, nil
}

// Definition returns the relay definition backed by the script
func (w *Workflow) Definition() *relay.Definition {
	return w.def
}

// LoadDir parses every script in dir, sorted by file name
func LoadDir(dir string) ([]*relay.Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Extension) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	res := make([]*relay.Definition, 0, len(names))
	for _, name := range names {
		src, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		wf, err := Parse(name, string(src))
		if err != nil {
			return nil, err
		}
		slog.Info("Script workflow loaded",
			slog.String("file", name),
			log.Workflow(api.Slugify(wf.def.Title)))
		res = append(res, wf.def)
	}
	return res, nil
}

func (w *Workflow) handle(ctx context.Context, run *relay.Run) error {
	L := newSandbox()
	ex := &execution{ctx: ctx, run: run}
	ex.register(L)

	if err := load(L, w.name, w.bytecode); err != nil {
		return err
	}

	L.Global(runGlobal)
	goToLua(L, run.Data())
	err := L.ProtectedCall(1, 0, 0)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if ex.err != nil {
		return ex.err
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLuaExecution, w.name, err)
	}
	return nil
}

func (ex *execution) register(L *lua.State) {
	L.Register("output", ex.emit(func(L *lua.State) error {
		return ex.run.Markdown(ex.ctx, lua.CheckString(L, 1))
	}))
	L.Register("text", ex.emit(func(L *lua.State) error {
		return ex.run.Text(ex.ctx, lua.CheckString(L, 1))
	}))
	L.Register("log", ex.emit(func(L *lua.State) error {
		return ex.run.Log(ex.ctx, lua.CheckString(L, 1))
	}))
	L.Register("code", ex.emit(func(L *lua.State) error {
		return ex.run.Code(ex.ctx,
			lua.CheckString(L, 1), lua.OptString(L, 2, ""),
		)
	}))
	L.Register("image", ex.emit(func(L *lua.State) error {
		return ex.run.Image(ex.ctx,
			lua.CheckString(L, 1), lua.OptString(L, 2, ""),
		)
	}))
	L.Register("link", ex.emit(func(L *lua.State) error {
		return ex.run.Link(ex.ctx, lua.CheckString(L, 1),
			lua.OptString(L, 2, ""), lua.OptString(L, 3, ""),
		)
	}))
	L.Register("show_table", ex.emit(func(L *lua.State) error {
		title := lua.OptString(L, 1, "")
		columns := toStrings(luaToGo(L, 2))
		var rows [][]string
		if arr, ok := luaToGo(L, 3).([]any); ok {
			for _, row := range arr {
				rows = append(rows, toStrings(row))
			}
		}
		return ex.run.Table(ex.ctx, title, columns, rows)
	}))
	L.Register("input", ex.input)
	L.Register("form", ex.form)
	L.Register("confirm", ex.confirm)
	L.Register("loading", ex.loading)
}

// emit adapts a primitive without results into a Lua function
func (ex *execution) emit(fn func(L *lua.State) error) lua.Function {
	return func(L *lua.State) int {
		ex.check(L, fn(L))
		return 0
	}
}

func (ex *execution) input(L *lua.State) int {
	value, err := ex.run.Input(ex.ctx, lua.CheckString(L, 1))
	ex.check(L, err)
	L.PushString(value)
	return 1
}

func (ex *execution) form(L *lua.State) int {
	prompt := lua.CheckString(L, 1)
	lua.CheckType(L, 2, lua.TypeTable)
	L.PushValue(2)
	schema, err := fieldsAt(L)
	L.Pop(1)
	ex.check(L, err)

	value, err := ex.run.Form(ex.ctx, prompt, schema)
	ex.check(L, err)
	pushLuaMap(L, value)
	return 1
}

func (ex *execution) confirm(L *lua.State) int {
	approved, err := ex.run.Confirm(ex.ctx, lua.CheckString(L, 1))
	ex.check(L, err)
	L.PushBoolean(approved)
	return 1
}

// loading calls the Lua body between the loading messages. A string
// returned by the body replaces the completion text
func (ex *execution) loading(L *lua.State) int {
	text := lua.CheckString(L, 1)
	lua.CheckType(L, 2, lua.TypeFunction)
	err := ex.run.Loading(ex.ctx, text,
		func(_ context.Context, l *relay.Loader) error {
			L.PushValue(2)
			L.Call(0, 1)
			if L.TypeOf(-1) == lua.TypeString {
				s, _ := L.ToString(-1)
				l.Complete(s)
			}
			L.Pop(1)
			return nil
		},
	)
	ex.check(L, err)
	return 0
}

// check raises err in the script. The first Go error is kept so the run
// fails with it rather than with its Lua rendering
func (ex *execution) check(L *lua.State, err error) {
	if err == nil {
		return
	}
	if ex.err == nil {
		ex.err = err
	}
	lua.Errorf(L, "%s", err.Error())
}

func inputSchema(L *lua.State) (api.InputSchema, error) {
	L.Field(-1, "input")
	defer L.Pop(1)
	if L.IsNil(-1) {
		return nil, nil
	}
	if !L.IsTable(-1) {
		return nil, fmt.Errorf("%w: input must be a list", ErrInvalidField)
	}
	return fieldsAt(L)
}

// fieldsAt converts the list of field tables on top of the stack
func fieldsAt(L *lua.State) (api.InputSchema, error) {
	raw, _ := luaToGo(L, -1).([]any)
	res := make(api.InputSchema, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: entry %d is not a table",
				ErrInvalidField, i+1)
		}
		f := api.InputField{
			Key: toString(m["key"]),
			FieldDef: api.FieldDef{
				Type:        api.FieldType(toString(m["type"])),
				Label:       toString(m["label"]),
				Description: toString(m["description"]),
				Placeholder: toString(m["placeholder"]),
			},
		}
		if f.Type == "" {
			f.Type = api.FieldText
		}
		opts, _ := m["options"].([]any)
		for _, o := range opts {
			om, _ := o.(map[string]any)
			f.Options = append(f.Options, api.SelectOption{
				Value: toString(om["value"]),
				Label: toString(om["label"]),
			})
		}
		res = append(res, f)
	}
	if err := res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		if s == float64(int64(s)) {
			return fmt.Sprintf("%d", int64(s))
		}
		return fmt.Sprint(s)
	default:
		return fmt.Sprint(s)
	}
}

func toStrings(v any) []string {
	arr, _ := v.([]any)
	res := make([]string, len(arr))
	for i, item := range arr {
		res[i] = toString(item)
	}
	return res
}
