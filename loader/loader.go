// Package loader reads fragment packs written in Lua, JSON or YAML into
// Go structs. The Lua VM is discarded after loading: no Lua at runtime.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/nathoo/worldweaver/types"
)

// Pack is a loaded world: its metadata and fragments in load order.
// Warnings are validation findings that do not stop loading.
type Pack struct {
	World     types.WorldDef
	Fragments []types.Fragment
	Warnings  []string
}

// collector accumulates Lua definitions during file execution.
type collector struct {
	world     *lua.LTable
	fragments []rawFragment
}

// Load reads every .lua, .json, .yaml and .yml file in dir, decodes the
// fragments, and validates the result. Lua files run first, world.lua
// before the rest; data files follow, each group alphabetical.
func Load(dir string) (*Pack, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading world directory %s: %w", dir, err)
	}

	var luaFiles, dataFiles []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".lua":
			luaFiles = append(luaFiles, e.Name())
		case ".json", ".yaml", ".yml":
			dataFiles = append(dataFiles, e.Name())
		}
	}
	if len(luaFiles) == 0 && len(dataFiles) == 0 {
		return nil, fmt.Errorf("no .lua, .json or .yaml files found in %s", dir)
	}
	sort.Strings(dataFiles)

	pack := &Pack{}
	if len(luaFiles) > 0 {
		if err := loadLua(dir, sortedLuaFiles(luaFiles), pack); err != nil {
			return nil, err
		}
	}

	for _, f := range dataFiles {
		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		doc, err := decodeDocument(data, filepath.Ext(f))
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f, err)
		}
		if err := mergeDocument(pack, doc); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", f, err)
		}
	}

	warnings, err := validate(pack)
	if err != nil {
		return nil, err
	}
	pack.Warnings = warnings
	return pack, nil
}

func loadLua(dir string, files []string, pack *Pack) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	openSafeLibs(L)
	sandbox(L)

	coll := &collector{}
	registerAPI(L, coll)

	for _, f := range files {
		if err := L.DoFile(filepath.Join(dir, f)); err != nil {
			return fmt.Errorf("executing %s: %w", f, err)
		}
	}

	if err := compile(coll, pack); err != nil {
		return fmt.Errorf("compiling world data: %w", err)
	}
	return nil
}

// openSafeLibs opens only the safe subset of Lua standard libraries.
func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

// sandbox removes dangerous globals and functions.
func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring",
		"rawset", "rawget", "rawequal",
		"collectgarbage",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}

	// Content must not reseed: selection owns the only random stream.
	if mathTbl := L.GetGlobal("math"); mathTbl != lua.LNil {
		if tbl, ok := mathTbl.(*lua.LTable); ok {
			tbl.RawSetString("randomseed", lua.LNil)
		}
	}
}

// sortedLuaFiles puts world.lua first and sorts the rest.
func sortedLuaFiles(files []string) []string {
	var worldFile string
	var others []string
	for _, f := range files {
		if f == "world.lua" {
			worldFile = f
		} else {
			others = append(others, f)
		}
	}
	sort.Strings(others)
	if worldFile != "" {
		return append([]string{worldFile}, others...)
	}
	return others
}
