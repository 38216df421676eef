package animator

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/skinned_mesh/skeleton"
	"github.com/mogaika/skinned_mesh/utils"
)

// PoseSource mutates bone local poses once per tick.
type PoseSource interface {
	Apply(s *skeleton.Skeleton, dt float32) error
}

// Frame is the deformed mesh of one tick. Frames are never modified after
// they are published.
type Frame struct {
	Tick     uint64        `json:"tick"`
	Vertices []mgl32.Vec3  `json:"vertices"`
	Normals  []mgl32.Vec3  `json:"normals,omitempty"`
	Bounds   [2]mgl32.Vec3 `json:"bounds"`
}

// Animator owns a skeleton and serialises every access to it: pose
// mutation, forward kinematics and deformation of one tick never overlap
// with pose updates coming from other goroutines.
type Animator struct {
	lock    sync.Mutex
	skel    *skeleton.Skeleton
	source  PoseSource
	resolve func(string) string

	tick  uint64
	frame *Frame

	subLock     sync.Mutex
	subscribers map[int]func(*Frame)
	nextSubId   int
}

// New creates an animator, source may be nil when poses only come from ApplyPose.
func New(s *skeleton.Skeleton, source PoseSource) *Animator {
	a := &Animator{
		skel:        s,
		source:      source,
		subscribers: make(map[int]func(*Frame)),
	}
	a.frame = a.makeFrame(s.BasePose())
	return a
}

// SetResolver installs a bone name mapping used by ApplyPose.
func (a *Animator) SetResolver(resolve func(string) string) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.resolve = resolve
}

func (a *Animator) makeFrame(vertices, normals []mgl32.Vec3) *Frame {
	f := &Frame{
		Tick:     a.tick,
		Vertices: vertices,
		Normals:  normals,
	}
	f.Bounds[0], f.Bounds[1] = utils.BoundingBox(vertices)
	return f
}

// Step runs one tick: pose source, then deformation, then subscribers.
func (a *Animator) Step(dt float32) (*Frame, error) {
	a.lock.Lock()
	if a.source != nil {
		if err := a.source.Apply(a.skel, dt); err != nil {
			a.lock.Unlock()
			return nil, errors.Wrapf(err, "Pose source failed at tick %d", a.tick)
		}
	}
	a.tick++
	frame := a.makeFrame(a.skel.Deform())
	a.frame = frame
	a.lock.Unlock()

	a.publish(frame)
	return frame, nil
}

// ApplyPose mutates bones between ticks. The next Step deforms with it.
func (a *Animator) ApplyPose(updates []skeleton.PoseUpdate) error {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.resolve != nil {
		resolved := make([]skeleton.PoseUpdate, len(updates))
		for i, u := range updates {
			u.Bone = a.resolve(u.Bone)
			resolved[i] = u
		}
		updates = resolved
	}
	return a.skel.Apply(updates)
}

func (a *Animator) Reset() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.skel.Reset()
}

// Frame returns the last published frame.
func (a *Animator) Frame() *Frame {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.frame
}

// View runs f with exclusive access to the skeleton.
func (a *Animator) View(f func(s *skeleton.Skeleton)) {
	a.lock.Lock()
	defer a.lock.Unlock()
	f(a.skel)
}

// Subscribe registers f for every future frame. f must not block for long,
// it runs on the ticking goroutine.
func (a *Animator) Subscribe(f func(*Frame)) (cancel func()) {
	a.subLock.Lock()
	defer a.subLock.Unlock()
	id := a.nextSubId
	a.nextSubId++
	a.subscribers[id] = f
	return func() {
		a.subLock.Lock()
		defer a.subLock.Unlock()
		delete(a.subscribers, id)
	}
}

func (a *Animator) publish(frame *Frame) {
	a.subLock.Lock()
	subs := make([]func(*Frame), 0, len(a.subscribers))
	for _, f := range a.subscribers {
		subs = append(subs, f)
	}
	a.subLock.Unlock()

	for _, f := range subs {
		f(frame)
	}
}

// Run ticks at rate ticks per second until ctx is done or a tick fails.
// dt is the measured time between ticks.
func (a *Animator) Run(ctx context.Context, rate float32) error {
	if rate <= 0 {
		return errors.Errorf("Invalid tick rate %v", rate)
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / float64(rate)))
	defer ticker.Stop()

	log.Printf("[animator] ticking at %v/s", rate)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[animator] stopped at tick %d", a.Frame().Tick)
			return ctx.Err()
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now
			if _, err := a.Step(dt); err != nil {
				return err
			}
		}
	}
}
