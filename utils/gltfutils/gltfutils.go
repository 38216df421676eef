package gltfutils

import (
	"encoding/binary"
	"io"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/skinned_mesh/skeleton"
	"github.com/mogaika/skinned_mesh/utils"
)

func NewDocument() *gltf.Document {
	return gltf.NewDocument()
}

func Decode(r io.Reader) (*gltf.Document, error) {
	doc := &gltf.Document{}
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "Failed to read gltf")
	}
	return doc, nil
}

func Open(path string) (*gltf.Document, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to open gltf %q", path)
	}
	return doc, nil
}

// FindSkinnedNode returns the first node that has both a mesh and a skin.
func FindSkinnedNode(doc *gltf.Document) (*gltf.Node, error) {
	for _, node := range doc.Nodes {
		if node.Mesh != nil && node.Skin != nil {
			return node, nil
		}
	}
	return nil, errors.Errorf("Document has no skinned mesh node")
}

// ReadSkinnedMesh collects every primitive of the first skinned mesh into
// one vertex list together with the skin's joint hierarchy and bind poses.
func ReadSkinnedMesh(doc *gltf.Document) (*skeleton.MeshData, error) {
	node, err := FindSkinnedNode(doc)
	if err != nil {
		return nil, err
	}
	if int(*node.Skin) >= len(doc.Skins) || int(*node.Mesh) >= len(doc.Meshes) {
		return nil, errors.Errorf("Node %q references missing skin or mesh", node.Name)
	}
	skin := doc.Skins[*node.Skin]
	mesh := doc.Meshes[*node.Mesh]

	md := &skeleton.MeshData{}
	if md.Bones, err = readJoints(doc, skin); err != nil {
		return nil, errors.Wrapf(err, "Skin %q", skin.Name)
	}

	for iPrimitive, primitive := range mesh.Primitives {
		if err := readPrimitive(doc, primitive, md); err != nil {
			return nil, errors.Wrapf(err, "Mesh %q primitive %d", mesh.Name, iPrimitive)
		}
	}

	if len(md.Normals) != len(md.Vertices) {
		log.Printf("[gltf] mesh %q has normals only on some primitives, dropping normals", mesh.Name)
		md.Normals = nil
	}

	log.Printf("[gltf] loaded mesh %q: %d vertices, %d joints", mesh.Name, len(md.Vertices), len(md.Bones))
	return md, nil
}

func readJoints(doc *gltf.Document, skin *gltf.Skin) ([]skeleton.BoneBind, error) {
	var inverseBind []mgl32.Mat4
	if skin.InverseBindMatrices != nil {
		var err error
		if inverseBind, err = readMat4Accessor(doc, *skin.InverseBindMatrices); err != nil {
			return nil, errors.Wrapf(err, "Failed to read inverse bind matrices")
		}
	}

	isJoint := make(map[uint32]int, len(skin.Joints))
	for iJoint, iNode := range skin.Joints {
		if int(iNode) >= len(doc.Nodes) {
			return nil, errors.Errorf("Joint %d references missing node %d", iJoint, iNode)
		}
		isJoint[iNode] = iJoint
	}

	names := utils.NewNameGenerator()
	for _, iNode := range skin.Joints {
		names.Reserve(doc.Nodes[iNode].Name)
	}

	binds := make([]skeleton.BoneBind, len(skin.Joints))
	for iJoint, iNode := range skin.Joints {
		name := doc.Nodes[iNode].Name
		if name == "" {
			name = names.Name()
			log.Printf("[gltf] joint %d (node %d) has no name, using %q", iJoint, iNode, name)
		}
		binds[iJoint].Name = name
		if iJoint < len(inverseBind) {
			binds[iJoint].BindPose = inverseBind[iJoint]
		} else {
			binds[iJoint].BindPose = mgl32.Ident4()
		}
	}

	for iParent, parent := range doc.Nodes {
		parentJoint, ok := isJoint[uint32(iParent)]
		if !ok {
			continue
		}
		for _, iChild := range parent.Children {
			if childJoint, ok := isJoint[iChild]; ok {
				binds[childJoint].Parent = binds[parentJoint].Name
			}
		}
	}

	return binds, nil
}

func readPrimitive(doc *gltf.Document, primitive *gltf.Primitive, md *skeleton.MeshData) error {
	iPosition, ok := primitive.Attributes["POSITION"]
	if !ok {
		return errors.Errorf("No POSITION attribute")
	}
	iJoints, okJ := primitive.Attributes["JOINTS_0"]
	iWeights, okW := primitive.Attributes["WEIGHTS_0"]
	if !okJ || !okW {
		return errors.Errorf("No JOINTS_0/WEIGHTS_0 attributes")
	}

	positions, err := modeler.ReadPosition(doc, doc.Accessors[iPosition], nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to read positions")
	}
	joints, err := modeler.ReadJoints(doc, doc.Accessors[iJoints], nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to read joints")
	}
	weights, err := modeler.ReadWeights(doc, doc.Accessors[iWeights], nil)
	if err != nil {
		return errors.Wrapf(err, "Failed to read weights")
	}
	if len(joints) != len(positions) || len(weights) != len(positions) {
		return errors.Errorf("Attribute count mismatch: %d positions, %d joints, %d weights",
			len(positions), len(joints), len(weights))
	}

	offset := uint32(len(md.Vertices))
	for i := range positions {
		md.Vertices = append(md.Vertices, positions[i])
		var slots [skeleton.INFLUENCES_PER_VERTEX]skeleton.Influence
		for s := range slots {
			slots[s] = skeleton.Influence{Bone: int(joints[i][s]), Weight: weights[i][s]}
		}
		md.Influences = append(md.Influences, slots)
	}

	if iNormal, ok := primitive.Attributes["NORMAL"]; ok {
		normals, err := modeler.ReadNormal(doc, doc.Accessors[iNormal], nil)
		if err != nil {
			return errors.Wrapf(err, "Failed to read normals")
		}
		if len(normals) == len(positions) && len(md.Normals) == int(offset) {
			for _, n := range normals {
				md.Normals = append(md.Normals, n)
			}
		}
	}

	if primitive.Indices != nil {
		indices, err := modeler.ReadIndices(doc, doc.Accessors[*primitive.Indices], nil)
		if err != nil {
			return errors.Wrapf(err, "Failed to read indices")
		}
		for _, index := range indices {
			md.Indices = append(md.Indices, index+offset)
		}
	} else {
		for i := range positions {
			md.Indices = append(md.Indices, offset+uint32(i))
		}
	}

	return nil
}

func readMat4Accessor(doc *gltf.Document, iAccessor uint32) ([]mgl32.Mat4, error) {
	if int(iAccessor) >= len(doc.Accessors) {
		return nil, errors.Errorf("Missing accessor %d", iAccessor)
	}
	accessor := doc.Accessors[iAccessor]
	if accessor.Type != gltf.AccessorMat4 || accessor.ComponentType != gltf.ComponentFloat {
		return nil, errors.Errorf("Accessor %d is not a float mat4", iAccessor)
	}
	if accessor.BufferView == nil {
		// sparse or zero initialised accessor
		return make([]mgl32.Mat4, accessor.Count), nil
	}

	bufferView := doc.BufferViews[*accessor.BufferView]
	data := doc.Buffers[bufferView.Buffer].Data
	stride := bufferView.ByteStride
	if stride == 0 {
		stride = 64
	}

	mats := make([]mgl32.Mat4, accessor.Count)
	for i := range mats {
		offset := bufferView.ByteOffset + accessor.ByteOffset + uint32(i)*stride
		if int(offset)+64 > len(data) {
			return nil, errors.Errorf("Accessor %d runs out of buffer at matrix %d", iAccessor, i)
		}
		for j := 0; j < 16; j++ {
			mats[i][j] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset+uint32(j)*4:]))
		}
	}
	return mats, nil
}

// ExportPosed writes a deformed frame as a static binary gltf mesh.
func ExportPosed(w io.Writer, name string, vertices, normals []mgl32.Vec3, indices []uint32) error {
	doc := NewDocument()

	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(doc, utils.Vec3Array(vertices)),
	}
	if len(normals) == len(vertices) {
		attributes["NORMAL"] = modeler.WriteNormal(doc, utils.Vec3Array(normals))
	}

	primitive := &gltf.Primitive{Attributes: attributes}
	if len(indices) != 0 {
		primitive.Indices = gltf.Index(modeler.WriteIndices(doc, indices))
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name:       name,
		Primitives: []*gltf.Primitive{primitive},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: name,
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	})

	return ExportBinary(w, doc)
}

func ExportBinary(w io.Writer, doc *gltf.Document) error {
	for iNode := range doc.Nodes {
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(iNode))
	}

	encoder := gltf.NewEncoder(w)
	encoder.AsBinary = true
	return errors.Wrapf(encoder.Encode(doc), "Failed to encode gltf")
}
