package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/encodeous/dvsim/state"
	"github.com/manifoldco/promptui"
)

func promptDefaultStr(label string, def string, validateFunc promptui.ValidateFunc) string {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
		Validate:  validateFunc,
	}
	val, err := prompt.Run()
	if err != nil {
		panic(err)
	}
	return val
}

func promptYN(prefix string, def bool) bool {
	choose := promptui.Select{
		Label:     prefix,
		Items:     []string{"Yes", "No"},
		Size:      2,
		CursorPos: 0,
	}
	if !def {
		choose.CursorPos = 1
	}
	run, _, err := choose.Run()
	if err != nil {
		return false
	}
	return run == 0
}

// intValidator accepts integers in [lo, hi].
func intValidator(lo, hi int) promptui.ValidateFunc {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%q is not a number", s)
		}
		if v < lo || v > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

// promptInt returns false when the prompt is aborted.
func promptInt(label string, def string, lo, hi int) (int, bool) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
		Validate:  intValidator(lo, hi),
	}
	val, err := prompt.Run()
	if err != nil {
		return 0, false
	}
	v, _ := strconv.Atoi(val)
	return v, true
}

func promptNode(label string, topo *state.Topology) (state.NodeId, bool) {
	v, ok := promptInt(label, "", 1, topo.Nodes)
	return state.NodeId(v), ok
}

func safeSaveFile(path string, name string) string {
Save:
	path, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Where do you want to save the %s?\n", name)
	path = promptDefaultStr("path", path, state.PathValidator)

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Warning: %s file already exists: %s, do you want to overwrite it?\n", name, path)
		res := promptYN("Overwrite?", false)
		if !res {
			goto Save
		}
	}
	return path
}
