// Package synthetic generates cartpole rollouts and loads them into a
// table.MemTable, for exercising the sampler without a real data
// producer attached. It is adapted from the teacher's
// internal/cartpole physics simulation, which originally fed a rollout
// worker's policy-gradient loop; the physics themselves are unchanged,
// only the harness around them (the policy/worker plumbing is gone,
// replaced by a fixed swing-and-balance controller used purely to
// produce test and demo data). The controller keeps the pole within
// bounds, so episodes typically run the full MaxSteps.
package synthetic

import (
	"encoding/binary"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/codeaudit/reverb-1/internal/reverbpb"
	"github.com/codeaudit/reverb-1/internal/table"
	"github.com/codeaudit/reverb-1/internal/tensor"
)

const (
	gravity        = 9.81
	massCart       = 1.0
	massPole       = 0.1
	length         = 0.5
	totalMass      = massCart + massPole
	poleMassLength = massPole * length
	forceMax       = 10.0
	tau            = 0.02

	xThreshold     = 2.4
	thetaThreshold = 12.0 * math.Pi / 180.0
	// MaxSteps bounds one episode's length.
	MaxSteps = 500
)

// state is the cartpole's four continuous degrees of freedom.
type state struct {
	x, xDot, theta, thetaDot float64
}

// env runs the cartpole physics forward one tau-second step at a time.
type env struct {
	state state
	steps int
	rng   *rand.Rand
}

func newEnv(rng *rand.Rand) *env {
	e := &env{rng: rng}
	e.reset()
	return e
}

func (e *env) reset() state {
	e.state = state{
		x:        e.rng.Float64()*0.1 - 0.05,
		xDot:     e.rng.Float64()*0.1 - 0.05,
		theta:    e.rng.Float64()*0.1 - 0.05,
		thetaDot: e.rng.Float64()*0.1 - 0.05,
	}
	e.steps = 0
	return e.state
}

// step applies a bang-bang push-towards-upright controller and advances
// the simulation by one tau. It returns the post-step state, a reward of
// 1 for every step survived, and whether the episode has ended.
func (e *env) step() (state, float64, bool) {
	force := forceMax
	if e.state.theta+0.5*e.state.thetaDot < 0 {
		force = -forceMax
	}

	x, xDot, theta, thetaDot := e.state.x, e.state.xDot, e.state.theta, e.state.thetaDot
	cosTheta := math.Cos(theta)
	sinTheta := math.Sin(theta)

	temp := (force + poleMassLength*thetaDot*thetaDot*sinTheta) / totalMass
	thetaAcc := (gravity*sinTheta - cosTheta*temp) / (length * (4.0/3.0 - massPole*cosTheta*cosTheta/totalMass))
	xAcc := temp - poleMassLength*thetaAcc*cosTheta/totalMass

	x += tau * xDot
	xDot += tau * xAcc
	theta += tau * thetaDot
	thetaDot += tau * thetaAcc

	e.state = state{x: x, xDot: xDot, theta: theta, thetaDot: thetaDot}
	e.steps++

	done := x < -xThreshold || x > xThreshold || theta < -thetaThreshold || theta > thetaThreshold || e.steps >= MaxSteps
	reward := 1.0
	if done && e.steps < MaxSteps {
		reward = 0.0
	}
	return e.state, reward, done
}

// Episode holds the per-timestep columns of one rollout, in the shape
// the sampling engine expects: one row per timestep.
type Episode struct {
	Observations [][4]float64
	Actions      []int64
	Rewards      []float64
}

// GenerateEpisode runs the controller to completion and returns the
// resulting trajectory.
func GenerateEpisode(rng *rand.Rand) Episode {
	e := newEnv(rng)
	var ep Episode
	for {
		action := int64(1)
		if e.state.theta+0.5*e.state.thetaDot < 0 {
			action = 0
		}

		obs := [4]float64{e.state.x, e.state.xDot, e.state.theta, e.state.thetaDot}
		_, reward, done := e.step()

		ep.Observations = append(ep.Observations, obs)
		ep.Actions = append(ep.Actions, action)
		ep.Rewards = append(ep.Rewards, reward)
		if done {
			return ep
		}
	}
}

// toChunk packs one episode into a single ChunkData with three columns:
// observations (float64, [T,4]), actions (int64, [T]), rewards (float64,
// [T]). Every sample drawn from the seeded table is therefore a single
// chunk trajectory, which takes reassemble's timestep fast path when it
// is served over SampleStream; local sampling reassembles it through
// FromSampledItem's general path.
func toChunk(key uint64, ep Episode) *reverbpb.ChunkData {
	t := int64(len(ep.Observations))

	obsData := make([]float64, 0, t*4)
	for _, o := range ep.Observations {
		obsData = append(obsData, o[0], o[1], o[2], o[3])
	}
	actionData := make([]float64, t)
	for i, a := range ep.Actions {
		actionData[i] = float64(a)
	}

	return &reverbpb.ChunkData{
		ChunkKey: key,
		Tensors: []reverbpb.RawTensor{
			{DType: tensor.Float64, Shape: []int64{t, 4}, Payload: obsData},
			{DType: tensor.Int64, Shape: []int64{t}, Payload: actionData},
			{DType: tensor.Float64, Shape: []int64{t}, Payload: append([]float64(nil), ep.Rewards...)},
		},
	}
}

func newKey() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[8:])
}

// SeedTable generates n episodes and pushes each into mt as a single
// timestep-trajectory item (spec.md §4.2, "fast path" input shape).
func SeedTable(mt *table.MemTable, n int, rng *rand.Rand) error {
	for i := 0; i < n; i++ {
		ep := GenerateEpisode(rng)
		t := int64(len(ep.Observations))
		chunkKey := newKey()
		chunk := toChunk(chunkKey, ep)

		column := func(squeeze bool) reverbpb.Column {
			return reverbpb.Column{
				ChunkSlices: []reverbpb.ChunkSlice{{ChunkKey: chunkKey, Offset: 0, Length: t}},
				Squeeze:     squeeze,
			}
		}
		meta := reverbpb.ItemMetadata{
			Key:      newKey(),
			Priority: 1.0,
			FlatTrajectory: reverbpb.FlatTrajectory{
				Columns: []reverbpb.Column{column(false), column(false), column(false)},
			},
		}

		if err := mt.Push(meta, []*reverbpb.ChunkData{chunk}); err != nil {
			return err
		}
	}
	return nil
}
