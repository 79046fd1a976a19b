package config

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"emcmot-go/pkg/kinematics"
	"emcmot-go/pkg/motion"
	"emcmot-go/pkg/pid"
	"emcmot-go/pkg/shmem"
)

// Machine is the controller configuration read from the [EMCMOT],
// [TRAJ] and [AXIS_n] sections.
type Machine struct {
	// [EMCMOT]
	ShmemPath   string
	CommTimeout time.Duration
	CommWait    time.Duration
	ServoPeriod float64
	LockMemory  bool

	// [TRAJ]
	NumAxes             int
	TrajCycleTime       float64
	DefaultVelocity     float64
	MaxVelocity         float64
	DefaultAcceleration float64
	Home                kinematics.Pose
	Kinematics          string
	ProbeIndex          int
	ProbePolarity       bool

	Axes []Axis
}

// Axis is the configuration of one joint.
type Axis struct {
	Gains pid.Gains

	InputScale   float64
	InputOffset  float64
	OutputScale  float64
	OutputOffset float64

	MinLimit  float64
	MaxLimit  float64
	MinOutput float64
	MaxOutput float64

	MaxFerror   float64
	MinFerror   float64
	MaxVelocity float64

	HomingVel  float64
	HomeOffset float64
	Home       float64
	Polarity   motion.Polarity

	CompFile  string
	SetupTime float64
	HoldTime  float64
}

// ShmemPathForKey maps a numeric shared memory key onto a file in
// /dev/shm.
func ShmemPathForKey(key int) string {
	return fmt.Sprintf("/dev/shm/emcmot-%d", key)
}

// LoadMachineFile parses path and extracts the machine configuration.
func LoadMachineFile(path string) (*Machine, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return LoadMachine(cfg)
}

// LoadMachine extracts the machine configuration. Errors from every
// axis are collected rather than stopping at the first.
func LoadMachine(cfg *Config) (*Machine, error) {
	m := &Machine{}
	if err := m.loadEmcmot(cfg.GetSectionOptional("EMCMOT")); err != nil {
		return nil, err
	}
	traj, err := cfg.GetSection("TRAJ")
	if err != nil {
		return nil, err
	}
	if err := m.loadTraj(traj); err != nil {
		return nil, err
	}

	m.Axes = make([]Axis, m.NumAxes)
	var errs error
	for i := range m.Axes {
		m.Axes[i] = DefaultAxis()
		sec := cfg.GetSectionOptional(fmt.Sprintf("AXIS_%d", i))
		if sec == nil {
			continue
		}
		errs = multierr.Append(errs, m.Axes[i].load(sec))
	}
	if errs != nil {
		return nil, errs
	}
	return m, nil
}

func (m *Machine) loadEmcmot(sec *Section) error {
	m.ShmemPath = ShmemPathForKey(100)
	m.CommTimeout = time.Second
	m.CommWait = 10 * time.Millisecond
	m.ServoPeriod = 0.001
	if sec == nil {
		return nil
	}

	if sec.HasOption("SHMEM_KEY") {
		key, err := sec.GetInt("SHMEM_KEY")
		if err != nil {
			return err
		}
		m.ShmemPath = ShmemPathForKey(key)
	}
	path, err := sec.Get("SHMEM_PATH", m.ShmemPath)
	if err != nil {
		return err
	}
	m.ShmemPath = path

	timeout, err := sec.GetFloatWithBounds("COMM_TIMEOUT", Above(0), m.CommTimeout.Seconds())
	if err != nil {
		return err
	}
	wait, err := sec.GetFloatWithBounds("COMM_WAIT", Above(0), m.CommWait.Seconds())
	if err != nil {
		return err
	}
	m.CommTimeout = seconds(timeout)
	m.CommWait = seconds(wait)

	if m.ServoPeriod, err = sec.GetFloatWithBounds("SERVO_PERIOD", Above(0), m.ServoPeriod); err != nil {
		return err
	}
	m.LockMemory, err = sec.GetBool("LOCK_MEMORY", false)
	return err
}

func (m *Machine) loadTraj(sec *Section) error {
	var err error
	if m.NumAxes, err = sec.GetIntWithBounds("AXES", 1, shmem.MaxJoints, 3); err != nil {
		return err
	}
	if m.TrajCycleTime, err = sec.GetFloatWithBounds("CYCLE_TIME", Above(0), 10*m.ServoPeriod); err != nil {
		return err
	}
	if m.TrajCycleTime < m.ServoPeriod {
		return ErrOutOfRange(sec.GetName(), "CYCLE_TIME", m.TrajCycleTime, "must not be below the servo period")
	}
	if m.DefaultVelocity, err = sec.GetFloatWithBounds("DEFAULT_VELOCITY", Above(0), 1); err != nil {
		return err
	}
	if m.MaxVelocity, err = sec.GetFloatWithBounds("MAX_VELOCITY", Above(0), m.DefaultVelocity); err != nil {
		return err
	}
	if m.DefaultAcceleration, err = sec.GetFloatWithBounds("DEFAULT_ACCELERATION", Above(0), 10); err != nil {
		return err
	}

	home, err := sec.GetFloatN("HOME", 6, make([]float64, 6))
	if err != nil {
		return err
	}
	for i, v := range home {
		m.Home.SetAxis(i, v)
	}

	if m.Kinematics, err = sec.GetChoice("KINEMATICS", []string{"trivial", "corexy"}, "trivial"); err != nil {
		return err
	}
	if m.ProbeIndex, err = sec.GetIntWithBounds("PROBE_INDEX", 0, 1<<16, 0); err != nil {
		return err
	}
	m.ProbePolarity, err = sec.GetBool("PROBE_POLARITY", true)
	return err
}

// DefaultAxis returns the settings used for an axis with no section.
func DefaultAxis() Axis {
	return Axis{
		InputScale:  1,
		OutputScale: 1,
		MinLimit:    -1,
		MaxLimit:    1,
		MinOutput:   -10,
		MaxOutput:   10,
		MaxFerror:   1,
		MinFerror:   0.01,
		MaxVelocity: 1,
		HomingVel:   1,
		Polarity:    motion.DefaultPolarity(),
		SetupTime:   1,
		HoldTime:    1,
	}
}

// floatOpt binds an option name to its destination for table-driven
// loading.
type floatOpt struct {
	name   string
	dst    *float64
	bounds FloatBounds
}

func (a *Axis) load(sec *Section) error {
	var errs error

	opts := []floatOpt{
		{"P", &a.Gains.P, FloatBounds{}},
		{"I", &a.Gains.I, FloatBounds{}},
		{"D", &a.Gains.D, FloatBounds{}},
		{"FF0", &a.Gains.FF0, FloatBounds{}},
		{"FF1", &a.Gains.FF1, FloatBounds{}},
		{"FF2", &a.Gains.FF2, FloatBounds{}},
		{"BACKLASH", &a.Gains.Backlash, AtLeast(0)},
		{"BIAS", &a.Gains.Bias, FloatBounds{}},
		{"MAX_ERROR", &a.Gains.MaxError, AtLeast(0)},
		{"DEADBAND", &a.Gains.Deadband, AtLeast(0)},
		{"MIN_LIMIT", &a.MinLimit, FloatBounds{}},
		{"MAX_LIMIT", &a.MaxLimit, FloatBounds{}},
		{"MIN_OUTPUT", &a.MinOutput, FloatBounds{}},
		{"MAX_OUTPUT", &a.MaxOutput, FloatBounds{}},
		{"FERROR", &a.MaxFerror, AtLeast(0)},
		{"MIN_FERROR", &a.MinFerror, AtLeast(0)},
		{"MAX_VELOCITY", &a.MaxVelocity, Above(0)},
		{"HOME_OFFSET", &a.HomeOffset, FloatBounds{}},
		{"HOME", &a.Home, FloatBounds{}},
		{"SETUP_TIME", &a.SetupTime, FloatBounds{}},
		{"HOLD_TIME", &a.HoldTime, FloatBounds{}},
	}
	for _, o := range opts {
		v, err := sec.GetFloatWithBounds(o.name, o.bounds, *o.dst)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		*o.dst = v
	}

	// HOMING_VEL carries the search direction in its sign
	if vel, err := sec.GetFloat("HOMING_VEL", a.HomingVel); err != nil {
		errs = multierr.Append(errs, err)
	} else if vel == 0 {
		errs = multierr.Append(errs, ErrOutOfRange(sec.GetName(), "HOMING_VEL", vel, "must not be zero"))
	} else {
		a.HomingVel = vel
	}

	errs = multierr.Append(errs, loadPair(sec, "INPUT_SCALE", &a.InputScale, &a.InputOffset))
	errs = multierr.Append(errs, loadPair(sec, "OUTPUT_SCALE", &a.OutputScale, &a.OutputOffset))

	polarities := []struct {
		name string
		dst  *bool
	}{
		{"ENABLE_POLARITY", &a.Polarity.Enable},
		{"MAX_LIMIT_SWITCH_POLARITY", &a.Polarity.MaxHardLimit},
		{"MIN_LIMIT_SWITCH_POLARITY", &a.Polarity.MinHardLimit},
		{"HOME_SWITCH_POLARITY", &a.Polarity.HomeSwitch},
		{"FAULT_POLARITY", &a.Polarity.Fault},
	}
	for _, p := range polarities {
		v, err := sec.GetBool(p.name, *p.dst)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		*p.dst = v
	}

	comp, err := sec.Get("COMP_FILE", "")
	errs = multierr.Append(errs, err)
	a.CompFile = comp

	if a.MinLimit > a.MaxLimit {
		errs = multierr.Append(errs, ErrOutOfRange(sec.GetName(), "MIN_LIMIT", a.MinLimit, "must not exceed MAX_LIMIT"))
	}
	if a.MinOutput > a.MaxOutput {
		errs = multierr.Append(errs, ErrOutOfRange(sec.GetName(), "MIN_OUTPUT", a.MinOutput, "must not exceed MAX_OUTPUT"))
	}
	return errs
}

// loadPair reads "scale offset", where the offset may be omitted.
func loadPair(sec *Section, option string, scale, offset *float64) error {
	vals, err := sec.GetFloatList(option, []float64{*scale, *offset})
	if err != nil {
		return err
	}
	if len(vals) < 1 || len(vals) > 2 {
		return ErrInvalidValue(sec.GetName(), option, fmt.Sprint(vals), "scale [offset]")
	}
	if vals[0] == 0 {
		return ErrOutOfRange(sec.GetName(), option, 0, "scale must not be zero")
	}
	*scale = vals[0]
	*offset = 0
	if len(vals) == 2 {
		*offset = vals[1]
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ControllerOptions returns the real-time controller options implied by
// the configuration.
func (m *Machine) ControllerOptions() motion.Options {
	return motion.Options{
		NumJoints:      m.NumAxes,
		ServoCycleTime: m.ServoPeriod,
		TrajCycleTime:  m.TrajCycleTime,
		Vmax:           m.DefaultVelocity,
		Amax:           m.DefaultAcceleration,
		LimitVel:       m.MaxVelocity,
	}
}
