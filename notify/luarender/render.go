// Package luarender renders notifications with an operator supplied Lua
// script.
//
// The script must define a global function render(msg) where msg is a
// table with the fields kind, to, payload and frontend. It must return a
// table with subject, text and (optional) html.
//
//	function render(msg)
//	  return { subject = "Your code", text = "Code: " .. msg.payload }
//	end
package luarender

import (
	"fmt"
	"os"
	"sync"

	"github.com/andrebq/doorman/notify"
	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"
)

type (
	// Renderer owns a single Lua state, calls are serialized.
	Renderer struct {
		sync.Mutex
		L        *lua.LState
		frontend string
	}

	MissingRender struct {
		Script string
	}
)

func (m MissingRender) Error() string {
	return fmt.Sprintf("luarender: script %v does not define a render function", m.Script)
}

// Load reads the script at path
func Load(path, frontendURL string) (*Renderer, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("luarender: unable to read %v, cause %w", path, err)
	}
	return New(path, string(buf), frontendURL)
}

func New(name, code, frontendURL string) (*Renderer, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	if err := injectLibs(L); err != nil {
		L.Close()
		return nil, err
	}
	fn, err := L.LoadString(code)
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("luarender: unable to compile %v, cause %w", name, err)
	}
	L.Push(fn)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("luarender: unable to run %v, cause %w", name, err)
	}
	if L.GetGlobal("render").Type() != lua.LTFunction {
		L.Close()
		return nil, MissingRender{Script: name}
	}
	if frontendURL == "" {
		frontendURL = notify.DefaultFrontendURL
	}
	return &Renderer{L: L, frontend: frontendURL}, nil
}

func (r *Renderer) Render(kind notify.Kind, to, payload string) (notify.Message, error) {
	r.Lock()
	defer r.Unlock()
	L := r.L
	msg := L.NewTable()
	L.SetField(msg, "kind", lua.LString(kind.String()))
	L.SetField(msg, "to", lua.LString(to))
	L.SetField(msg, "payload", lua.LString(payload))
	L.SetField(msg, "frontend", lua.LString(r.frontend))
	err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("render"),
		NRet:    1,
		Protect: true,
	}, msg)
	if err != nil {
		return notify.Message{}, fmt.Errorf("luarender: render failed for %v, cause %w", kind, err)
	}
	ret := L.Get(-1)
	L.Pop(1)
	tbl, ok := ret.(*lua.LTable)
	if !ok {
		return notify.Message{}, fmt.Errorf("luarender: render must return a table got %v", ret.Type())
	}
	var out notify.Message
	if err := gluamapper.Map(tbl, &out); err != nil {
		return notify.Message{}, fmt.Errorf("luarender: unable to map result, cause %w", err)
	}
	if out.Subject == "" || (out.Text == "" && out.HTML == "") {
		return notify.Message{}, fmt.Errorf("luarender: render returned an empty message for %v", kind)
	}
	return out, nil
}

func (r *Renderer) Close() {
	r.Lock()
	defer r.Unlock()
	r.L.Close()
}

// injectLibs opens the subset of the standard library scripts may use,
// io and os are left out.
func injectLibs(L *lua.LState) error {
	for _, pair := range []struct {
		n string
		f lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage}, // Must be first
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(pair.f),
			NRet:    0,
			Protect: true,
		}, lua.LString(pair.n)); err != nil {
			return fmt.Errorf("luarender: unable to open %v, cause %w", pair.n, err)
		}
	}
	return nil
}
