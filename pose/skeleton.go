package pose

import "github.com/AltairaLabs/PoseKit/types"

// Joint is a reliable keypoint ready to draw.
type Joint struct {
	Index    int
	Keypoint types.Keypoint
	Region   Region
}

// Bone is a drawable edge; both endpoints are reliable.
type Bone struct {
	From, To types.Keypoint
	Edge     Edge
	Region   Region
}

// Skeleton is the drawable form of one frame.
type Skeleton struct {
	Layout Layout
	Joints []Joint
	Bones  []Bone
}

// Empty reports whether there is nothing to draw.
func (s Skeleton) Empty() bool {
	return len(s.Joints) == 0 && len(s.Bones) == 0
}

// Build converts frame into a skeleton for layout. A frame whose length is
// not exactly layout.Size belongs to another layout and yields an empty
// skeleton. Keypoints below types.ConfidenceThreshold
// are omitted together with every edge touching them.
func Build(layout Layout, frame types.Frame) Skeleton {
	sk := Skeleton{Layout: layout}
	if layout.Size == 0 || len(frame) != layout.Size {
		return sk
	}
	for i := 0; i < layout.Size; i++ {
		if frame[i].Reliable() {
			sk.Joints = append(sk.Joints, Joint{Index: i, Keypoint: frame[i], Region: layout.Region(i)})
		}
	}
	for _, e := range layout.Edges {
		a, b := frame[e[0]], frame[e[1]]
		if !a.Reliable() || !b.Reliable() {
			continue
		}
		sk.Bones = append(sk.Bones, Bone{From: a, To: b, Edge: e, Region: layout.Region(e[0])})
	}
	return sk
}

// HasEdge reports whether the skeleton draws edge (a,b) in either direction.
func (s Skeleton) HasEdge(a, b int) bool {
	for _, bone := range s.Bones {
		if (bone.Edge[0] == a && bone.Edge[1] == b) || (bone.Edge[0] == b && bone.Edge[1] == a) {
			return true
		}
	}
	return false
}
