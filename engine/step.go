package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nathoo/worldweaver/engine/parser"
	"github.com/nathoo/worldweaver/engine/resolve"
	"github.com/nathoo/worldweaver/types"
)

// Step parses one console command and runs it. Errors become output
// lines; the console never sees them directly.
func (e *Engine) Step(ctx context.Context, input string) types.Result {
	intent := parser.Parse(input)

	var (
		res types.Result
		err error
	)
	switch intent.Verb {
	case "":
		return say("What do you want to do?")

	case "next":
		res, err = e.Next(ctx, nil)

	case "look":
		res, err = e.look(ctx)

	case "choose":
		n, convErr := strconv.Atoi(intent.Object)
		if convErr != nil {
			return say("Choose which? Give the number of a choice.")
		}
		res, err = e.Choose(ctx, n-1)

	case "go":
		if intent.Object == "" {
			return say("Go where?")
		}
		res, err = e.Move(ctx, intent.Object)

	case "exits":
		res, err = e.exitsResult()

	case "map":
		res = say(e.World.Layout.Render())

	case "inventory":
		res = e.inventory()

	case "status":
		res = e.status()

	case "use":
		res, err = e.use(intent.Object)

	case "wait":
		res, err = e.Next(ctx, nil)
		res.Output = append([]string{"Time passes."}, res.Output...)

	default:
		return say(fmt.Sprintf("I don't know how to %q.", intent.Verb))
	}

	if err != nil {
		e.logger.Debug("command failed", "input", input, "error", err)
		return say(describe(err))
	}
	return res
}

func (e *Engine) look(ctx context.Context) (types.Result, error) {
	e.mu.Lock()
	if e.current != nil {
		res := e.present(*e.current)
		e.mu.Unlock()
		return res, nil
	}
	e.mu.Unlock()
	return e.Next(ctx, nil)
}

func (e *Engine) exitsResult() (types.Result, error) {
	exits, err := e.Exits()
	if err != nil {
		return types.Result{}, err
	}
	if len(exits) == 0 {
		return say("There is no obvious way on from here."), nil
	}
	var res types.Result
	for _, x := range exits {
		name := x.Fragment.Title
		if name == "" {
			name = x.Fragment.ID
		}
		line := fmt.Sprintf("%s %s: %s", x.Direction.Symbol, x.Direction.Name, name)
		if !x.Open {
			line += " (blocked)"
		}
		res.Output = append(res.Output, line)
	}
	return res, nil
}

func (e *Engine) inventory() types.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	items := e.State.Inventory()
	if len(items) == 0 {
		return say("You are carrying nothing.")
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		name := it.Name
		if name == "" {
			name = it.ID
		}
		if it.Quantity > 1 {
			name = fmt.Sprintf("%s (x%d)", name, it.Quantity)
		}
		names = append(names, name)
	}
	return say("You are carrying: " + strings.Join(names, ", ") + ".")
}

func (e *Engine) status() types.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.State.Summary()

	var res types.Result
	res.Output = append(res.Output, fmt.Sprintf("Location: %s", e.location()))
	env := s.Environment
	res.Output = append(res.Output, fmt.Sprintf("It is %s. Weather: %s. Danger: %d.", env.TimeOfDay, env.Weather, env.DangerLevel))

	keys := make([]string, 0, len(s.Variables))
	for k := range s.Variables {
		if k != "location" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		res.Output = append(res.Output, fmt.Sprintf("  %s = %v", k, s.Variables[k]))
	}
	for _, r := range s.Relationships {
		res.Output = append(res.Output, fmt.Sprintf("  %s: %s", r.Key, r.Disposition))
	}
	return res
}

func (e *Engine) use(item string) (types.Result, error) {
	if item == "" {
		return say("Use what?"), nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := resolve.Item(e.State.Inventory(), item)
	if err != nil {
		return types.Result{}, err
	}
	it, err := e.State.UseItem(id)
	if err != nil {
		return types.Result{}, err
	}
	name := it.Name
	if name == "" {
		name = it.ID
	}
	if it.Quantity <= 0 {
		return say(fmt.Sprintf("You use the last of the %s.", name)), nil
	}
	return say(fmt.Sprintf("You use the %s.", name)), nil
}

func describe(err error) string {
	if errors.Is(err, types.ErrInvalidArgument) {
		return "You can't do that: " + err.Error() + "."
	}
	return "Something went wrong: " + err.Error() + "."
}

func say(lines ...string) types.Result {
	return types.Result{Output: lines}
}
