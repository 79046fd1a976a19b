package kinematics

// Trivial maps joints 0..5 directly onto X, Y, Z, A, B, C. Machines
// with fewer joints leave the remaining axes at zero.
type Trivial struct{}

// Name returns the kinematics name used in configuration.
func (Trivial) Name() string { return "trivial" }

// Type returns Identity.
func (Trivial) Type() Type { return Identity }

// Forward copies joints into the pose.
func (Trivial) Forward(joints []float64, pos *Pose) error {
	*pos = Pose{}
	for i := 0; i < len(joints) && i < 6; i++ {
		pos.SetAxis(i, joints[i])
	}
	return nil
}

// Inverse copies the pose into joints.
func (Trivial) Inverse(pos Pose, joints []float64) error {
	for i := 0; i < len(joints) && i < 6; i++ {
		joints[i] = pos.Axis(i)
	}
	return nil
}

// Home sets world to the pose of the joint home positions.
func (k Trivial) Home(world *Pose, joints []float64) error {
	return k.Forward(joints, world)
}
