/*
	This file holds types supporting command-line interaction with the surfaces tool.
*/

package dvid

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys for setting various arguments within the command line via "key=value" strings.
const (
	KeyIndex    = "index"
	KeyAxis     = "axis"
	KeyPoint    = "point"
	KeyMin      = "min"
	KeyMax      = "max"
	KeyWorkers  = "workers"
	KeyCompress = "compress"
)

var setKeys = map[string]bool{
	KeyIndex:    true,
	KeyAxis:     true,
	KeyPoint:    true,
	KeyMin:      true,
	KeyMax:      true,
	KeyWorkers:  true,
	KeyCompress: true,
}

// Command is a command line split into arguments.  The first item in the string slice
// is the command, e.g., "classify".  The other arguments are command arguments or
// optional settings of the form "<key>=<value>".
type Command []string

// String returns a space-separated command line
func (cmd Command) String() string {
	return strings.Join([]string(cmd), " ")
}

// Name returns the first argument which is assumed to be the name of the command.
func (cmd Command) Name() string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

// Parameter scans a command for any "key=value" argument and returns
// the value of the passed 'key'.
func (cmd Command) Parameter(key string) (value string, found bool) {
	if len(cmd) > 1 {
		for _, arg := range cmd[1:] {
			elems := strings.SplitN(arg, "=", 2)
			if len(elems) == 2 && elems[0] == key {
				return elems[1], true
			}
		}
	}
	return
}

// IntParameter returns the integer value of a "key=value" setting or the default
// if the setting isn't present.
func (cmd Command) IntParameter(key string, defaultValue int) (int, error) {
	str, found := cmd.Parameter(key)
	if !found {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("bad %s=%q: %v", key, str, err)
	}
	return i, nil
}

// FloatParameter returns the float value of a "key=value" setting.  found is false
// if the setting isn't present.
func (cmd Command) FloatParameter(key string) (value float64, found bool, err error) {
	str, found := cmd.Parameter(key)
	if !found {
		return 0, false, nil
	}
	if value, err = strconv.ParseFloat(str, 64); err != nil {
		return 0, true, fmt.Errorf("bad %s=%q: %v", key, str, err)
	}
	return value, true, nil
}

// CommandArgs sets a variadic argument set of string pointers to command
// arguments, ignoring setting arguments of the form "<key>=<value>".
// If there aren't enough arguments to set a target, the target is set to the
// empty string.  It returns an 'overflow' slice that has all arguments
// beyond those needed for targets.
func (cmd Command) CommandArgs(targets ...*string) (overflow []string) {
	overflow = make([]string, 0, len(cmd))
	for _, target := range targets {
		*target = ""
	}
	if len(cmd) < 2 {
		return
	}
	curTarget := 0
	for _, arg := range cmd[1:] {
		elems := strings.SplitN(arg, "=", 2)
		if len(elems) == 2 && setKeys[elems[0]] {
			continue
		}
		if curTarget >= len(targets) {
			overflow = append(overflow, arg)
		} else {
			*(targets[curTarget]) = arg
		}
		curTarget++
	}
	return
}
