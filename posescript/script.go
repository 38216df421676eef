package posescript

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

type Op int

const (
	// continuous rotation in degrees per second, applied every tick
	OP_SPIN Op = iota
	OP_STOP
	// one-shot rotation composed onto the current local rotation, degrees
	OP_ROTATE
	// one-shot absolute local rotation, degrees
	OP_ROTATION
	OP_POSITION
	OP_TRANSLATE
	OP_RESET
	// end of the one-shot block of the current tick
	OP_TICK
)

var opNames = [...]string{
	OP_SPIN:      "spin",
	OP_STOP:      "stop",
	OP_ROTATE:    "rotate",
	OP_ROTATION:  "rotation",
	OP_POSITION:  "position",
	OP_TRANSLATE: "translate",
	OP_RESET:     "reset",
	OP_TICK:      "tick",
}

var opByName map[string]Op

func init() {
	opByName = make(map[string]Op, len(opNames))
	for op, name := range opNames {
		opByName[name] = Op(op)
	}
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("op(%d)", int(op))
}

func (op Op) takesBone() bool {
	return op != OP_RESET && op != OP_TICK
}

func (op Op) takesVector() bool {
	return op.takesBone() && op != OP_STOP
}

type Command struct {
	Op      Op
	Bone    string
	Vector  mgl32.Vec3
	Line    int
	Comment string
}

func (c *Command) String() string {
	s := c.Op.String()
	if c.Op.takesBone() {
		s += fmt.Sprintf(" %q", c.Bone)
	}
	if c.Op.takesVector() {
		s += fmt.Sprintf(" %v %v %v", c.Vector[0], c.Vector[1], c.Vector[2])
	}
	return s
}

func RenderScriptLines(cmds []*Command) []string {
	result := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if c.Comment == "" {
			result = append(result, c.String())
		} else {
			result = append(result, fmt.Sprintf("%-40s // %s", c.String(), c.Comment))
		}
	}
	return result
}

func RenderScript(cmds []*Command) string {
	return strings.Join(RenderScriptLines(cmds), "\n")
}
