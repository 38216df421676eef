package web

import (
	"log"
	"net/http"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/skinned_mesh/skeleton"
	"github.com/mogaika/skinned_mesh/utils"
	"github.com/mogaika/skinned_mesh/webutils"
)

type BoneInfo struct {
	Name     string     `json:"name"`
	Parent   string     `json:"parent,omitempty"`
	Position mgl32.Vec3 `json:"position"`
	Rotation [4]float32 `json:"rotation"`
	// local rotation as euler angles in degrees
	Euler mgl32.Vec3 `json:"euler"`
	World mgl32.Vec3 `json:"world"`
}

func boneInfos(s *skeleton.Skeleton) []BoneInfo {
	world := s.WorldTransforms()
	infos := make([]BoneInfo, len(s.Bones()))
	for i, b := range s.Bones() {
		q := b.Rotation()
		e := utils.QuatToEuler(q)
		infos[i] = BoneInfo{
			Name:     b.Name(),
			Parent:   b.Parent(),
			Position: b.Position(),
			Rotation: [4]float32{q.X(), q.Y(), q.Z(), q.W},
			Euler:    mgl32.Vec3{mgl32.RadToDeg(e[0]), mgl32.RadToDeg(e[1]), mgl32.RadToDeg(e[2])},
			World:    world[i].Col(3).Vec3(),
		}
	}
	return infos
}

func (s *Server) HandlerSkeleton(w http.ResponseWriter, r *http.Request) {
	var infos []BoneInfo
	s.anim.View(func(skel *skeleton.Skeleton) {
		infos = boneInfos(skel)
	})
	webutils.WriteJson(w, infos)
}

func (s *Server) HandlerFrame(w http.ResponseWriter, r *http.Request) {
	webutils.WriteJson(w, s.anim.Frame())
}

func (s *Server) HandlerPose(w http.ResponseWriter, r *http.Request) {
	var updates []skeleton.PoseUpdate
	if err := webutils.ReadJson(r, &updates); err != nil {
		webutils.WriteError(w, err)
		return
	}
	if err := s.anim.ApplyPose(updates); err != nil {
		if errors.Is(err, skeleton.ErrUnknownBone) {
			webutils.WriteErrorCode(w, http.StatusNotFound, err)
		} else {
			webutils.WriteError(w, err)
		}
		return
	}
	log.Printf("[web] applied %d pose updates", len(updates))
	webutils.WriteJson(w, map[string]int{"applied": len(updates)})
}

func (s *Server) HandlerReset(w http.ResponseWriter, r *http.Request) {
	s.anim.Reset()
	webutils.WriteJson(w, map[string]bool{"reset": true})
}
