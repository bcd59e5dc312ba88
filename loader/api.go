package loader

import (
	lua "github.com/yuin/gopher-lua"
)

// registerAPI registers all Lua constructors and helpers as globals.
func registerAPI(L *lua.LState, coll *collector) {
	registerConstructors(L, coll)
	registerRequirementHelpers(L)
	registerChoiceHelpers(L)
}

func registerConstructors(L *lua.LState, coll *collector) {
	// World { title = "...", start = "...", ... }
	L.SetGlobal("World", L.NewFunction(func(L *lua.LState) int {
		tbl := L.CheckTable(1)
		coll.world = tbl
		return 0
	}))

	// Fragment "id" { ... }: curried, Fragment("id") returns a function that takes a table.
	L.SetGlobal("Fragment", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		L.Push(L.NewFunction(func(L *lua.LState) int {
			tbl := L.CheckTable(1)
			coll.fragments = append(coll.fragments, rawFragment{id: id, table: tbl})
			return 0
		}))
		return 1
	}))
}

func registerRequirementHelpers(L *lua.LState) {
	// Gte(5), Gt(5), Lte(5), Lt(5), Eq(x), Ne(x) build single-operator objects.
	for name, op := range map[string]string{
		"Gte": "gte", "Gt": "gt", "Lte": "lte", "Lt": "lt", "Eq": "eq", "Ne": "ne",
	} {
		L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int {
			tbl := L.NewTable()
			tbl.RawSetString(op, L.CheckAny(1))
			L.Push(tbl)
			return 1
		}))
	}

	// Between(lo, hi) → { gte = lo, lte = hi }
	L.SetGlobal("Between", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("gte", L.CheckNumber(1))
		tbl.RawSetString("lte", L.CheckNumber(2))
		L.Push(tbl)
		return 1
	}))

	// Item("torch") → "item:torch", for use as a requirement key.
	L.SetGlobal("Item", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LString("item:" + L.CheckString(1)))
		return 1
	}))

	// Relationship("player", "guide") → "relationship:player:guide"
	L.SetGlobal("Relationship", L.NewFunction(func(L *lua.LState) int {
		a := L.CheckString(1)
		b := L.CheckString(2)
		L.Push(lua.LString("relationship:" + a + ":" + b))
		return 1
	}))
}

func registerChoiceHelpers(L *lua.LState) {
	// Choice("label", { var = value, ... }); the set table may be omitted.
	L.SetGlobal("Choice", L.NewFunction(func(L *lua.LState) int {
		label := L.CheckString(1)
		tbl := L.NewTable()
		tbl.RawSetString("label", lua.LString(label))
		if set, ok := L.Get(2).(*lua.LTable); ok {
			tbl.RawSetString("set", set)
		}
		L.Push(tbl)
		return 1
	}))

	// Inc(n) → { inc = n }
	L.SetGlobal("Inc", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("inc", L.OptNumber(1, 1))
		L.Push(tbl)
		return 1
	}))

	// Dec(n) → { dec = n }
	L.SetGlobal("Dec", L.NewFunction(func(L *lua.LState) int {
		tbl := L.NewTable()
		tbl.RawSetString("dec", L.OptNumber(1, 1))
		L.Push(tbl)
		return 1
	}))
}
