package stage

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-csm/common"
)

// ReflectiveShadowStageName is the name of the reflective shadow stage.
const ReflectiveShadowStageName = "ReflectiveShadow"

// reflectiveShadowStageImpl implements ReflectiveShadowStage.
type reflectiveShadowStageImpl struct {
	visible [][]int
}

// ReflectiveShadowStage renders the reflective shadow maps. It reads the published shadow data,
// culls the shadow casters against the light frustum of every cascade and hands the shadow data
// plus the cascade matrices to the binding layer.
type ReflectiveShadowStage interface {
	Stage

	// VisibleCasters returns, per cascade, the indices into FrameContext.Casters that survived
	// culling in the last executed frame. Empty when the frame had no shadow data.
	//
	// Returns:
	//   - [][]int: visible caster indices per cascade
	VisibleCasters() [][]int
}

var _ ReflectiveShadowStage = &reflectiveShadowStageImpl{}

// NewReflectiveShadowStage creates the reflective shadow stage.
//
// Returns:
//   - ReflectiveShadowStage: the stage
func NewReflectiveShadowStage() ReflectiveShadowStage {
	return &reflectiveShadowStageImpl{}
}

func (s *reflectiveShadowStageImpl) Name() string {
	return ReflectiveShadowStageName
}

func (s *reflectiveShadowStageImpl) Role() Role {
	return RoleReader
}

func (s *reflectiveShadowStageImpl) VisibleCasters() [][]int {
	return s.visible
}

func (s *reflectiveShadowStageImpl) Execute(ctx *FrameContext) error {
	s.visible = nil
	data, ok := ctx.Board.Shadow()
	if !ok {
		common.Logger().Debug("no shadow data, skipping", "stage", s.Name(), "frame", ctx.Index)
		return nil
	}

	gpu := data.GPU()
	ctx.emit(UniformWrite{Stage: s.Name(), Label: "PerFrameCB", Binding: 0, Data: gpu.Marshal()})

	n := data.CascadeCount()
	s.visible = make([][]int, n)
	for i := range n {
		m := data.CascadeMatrix(i)
		planes := common.ExtractFrustumPlanes(m)
		visible := make([]int, 0, len(ctx.Casters))
		for j, c := range ctx.Casters {
			// Casters in front of the light's near plane still cast, depth is clamped.
			if planes.IntersectsSphere(c, common.PlaneNear) {
				visible = append(visible, j)
			}
		}
		s.visible[i] = visible

		ctx.emit(UniformWrite{
			Stage:   s.Name(),
			Label:   fmt.Sprintf("CascadeCB[%d]", i),
			Binding: 1,
			Data:    marshalMat4(m),
		})
	}
	return nil
}
