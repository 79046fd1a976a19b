// CoreXY kinematics implementation.
package kinematics

// CoreXY drives X and Y with two motors working together:
//   - Motor A (joint 0): moves the carriage diagonally (X+Y direction)
//   - Motor B (joint 1): moves the carriage diagonally (X-Y direction)
//   - X position = 0.5 * (A + B)
//   - Y position = 0.5 * (A - B)
//
// Joint 2 onward map directly to Z, A, B, C.
type CoreXY struct{}

// Name returns the kinematics name used in configuration.
func (CoreXY) Name() string { return "corexy" }

// Type returns Both: the transforms exist but joint i is not axis i.
func (CoreXY) Type() Type { return Both }

// Forward calculates the Cartesian pose from motor positions.
func (CoreXY) Forward(joints []float64, pos *Pose) error {
	if len(joints) < 2 {
		return ErrTooFewJoints
	}
	*pos = Pose{}
	pos.Tran.X = 0.5 * (joints[0] + joints[1])
	pos.Tran.Y = 0.5 * (joints[0] - joints[1])
	for i := 2; i < len(joints) && i < 6; i++ {
		pos.SetAxis(i, joints[i])
	}
	return nil
}

// Inverse calculates motor positions for a Cartesian pose.
//   - A = X + Y
//   - B = X - Y
func (CoreXY) Inverse(pos Pose, joints []float64) error {
	if len(joints) < 2 {
		return ErrTooFewJoints
	}
	joints[0] = pos.Tran.X + pos.Tran.Y
	joints[1] = pos.Tran.X - pos.Tran.Y
	for i := 2; i < len(joints) && i < 6; i++ {
		joints[i] = pos.Axis(i)
	}
	return nil
}

// Home sets world to the pose of the joint home positions.
func (k CoreXY) Home(world *Pose, joints []float64) error {
	return k.Forward(joints, world)
}
