package posescript

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/skinned_mesh/skeleton"
	"github.com/mogaika/skinned_mesh/utils"
)

// Driver plays a pose script. Every Apply executes the one-shot statements
// up to the next tick statement and then advances all active spins by dt.
type Driver struct {
	// Resolve maps script bone names to skeleton bone names, may be nil
	Resolve func(name string) string
	// Loop restarts the script after its last statement
	Loop bool

	commands []*Command
	cursor   int

	spinOrder []string
	spins     map[string]mgl32.Vec3
}

func NewDriver(cmds []*Command) *Driver {
	return &Driver{
		commands: cmds,
		spins:    make(map[string]mgl32.Vec3),
	}
}

func (d *Driver) Done() bool {
	return !d.Loop && d.cursor >= len(d.commands)
}

func (d *Driver) bone(s *skeleton.Skeleton, c *Command) (*skeleton.Bone, error) {
	name := c.Bone
	if d.Resolve != nil {
		name = d.Resolve(name)
	}
	b, ok := s.Bone(name)
	if !ok {
		return nil, errors.Wrapf(skeleton.ErrUnknownBone, "%q on line %v", name, c.Line)
	}
	return b, nil
}

func (d *Driver) Apply(s *skeleton.Skeleton, dt float32) error {
	if d.Loop && d.cursor >= len(d.commands) {
		d.cursor = 0
	}

	for d.cursor < len(d.commands) {
		c := d.commands[d.cursor]
		d.cursor++
		if c.Op == OP_TICK {
			break
		}
		if err := d.exec(s, c); err != nil {
			return err
		}
	}

	for _, name := range d.spinOrder {
		b, ok := s.Bone(name)
		if !ok {
			continue
		}
		b.Rotate(utils.EulerDegreesToQuat(d.spins[name].Mul(dt)))
	}
	return nil
}

func (d *Driver) exec(s *skeleton.Skeleton, c *Command) error {
	if c.Op == OP_RESET {
		s.Reset()
		return nil
	}

	b, err := d.bone(s, c)
	if err != nil {
		return err
	}

	switch c.Op {
	case OP_SPIN:
		if _, exists := d.spins[b.Name()]; !exists {
			d.spinOrder = append(d.spinOrder, b.Name())
		}
		d.spins[b.Name()] = c.Vector
	case OP_STOP:
		if _, exists := d.spins[b.Name()]; exists {
			delete(d.spins, b.Name())
			for i, name := range d.spinOrder {
				if name == b.Name() {
					d.spinOrder = append(d.spinOrder[:i], d.spinOrder[i+1:]...)
					break
				}
			}
		}
	case OP_ROTATE:
		b.Rotate(utils.EulerDegreesToQuat(c.Vector))
	case OP_ROTATION:
		b.SetRotation(utils.EulerDegreesToQuat(c.Vector))
	case OP_POSITION:
		b.SetPosition(c.Vector)
	case OP_TRANSLATE:
		b.Translate(c.Vector)
	default:
		return errors.Errorf("Unsupported statement %v on line %v", c.Op, c.Line)
	}
	return nil
}
