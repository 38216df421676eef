package objutils

import (
	"bufio"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ExportObj writes one deformed frame as a wavefront object.
// indices are triangles over vertices, normals may be nil.
func ExportObj(_w io.Writer, name string, vertices, normals []mgl32.Vec3, indices []uint32) error {
	bw := bufio.NewWriter(_w)
	w := func(format string, args ...interface{}) {
		fmt.Fprintf(bw, format+"\n", args...)
	}

	if len(indices)%3 != 0 {
		return errors.Errorf("Index count %d is not a multiple of 3", len(indices))
	}
	haveNorm := len(normals) == len(vertices) && len(normals) != 0

	for _, vertex := range vertices {
		w("v %f %f %f", vertex[0], vertex[1], vertex[2])
	}
	if haveNorm {
		for _, normal := range normals {
			w("vn %f %f %f", normal[0], normal[1], normal[2])
		}
	}

	w("o %s", name)
	for iIndex := 0; iIndex < len(indices); iIndex += 3 {
		tri := indices[iIndex : iIndex+3]
		for _, index := range tri {
			if int(index) >= len(vertices) {
				return errors.Errorf("Index %d out of %d vertices", index, len(vertices))
			}
		}
		if haveNorm {
			w("f %v//%v %v//%v %v//%v",
				tri[0]+1, tri[0]+1,
				tri[1]+1, tri[1]+1,
				tri[2]+1, tri[2]+1)
		} else {
			w("f %v %v %v", tri[0]+1, tri[1]+1, tri[2]+1)
		}
	}

	return errors.Wrapf(bw.Flush(), "Failed to write obj")
}
