// Package synth generates deterministic message streams for a small unit
// and team schema. The streams exercise every entity command and are used
// to produce demo logs and test fixtures.
package synth

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"

	"github.com/ssargent/replaykit/pkg/engine"
	"github.com/ssargent/replaykit/pkg/entity"
	"github.com/ssargent/replaykit/pkg/fieldpath"
	"github.com/ssargent/replaykit/pkg/fieldvalue"
	"github.com/ssargent/replaykit/pkg/schema"
)

// Class ids of the generated schema.
const (
	ClassTeam int32 = 0
	ClassUnit int32 = 1
)

// Field paths of CUnit.
var (
	PathHealth = fieldpath.New(0)
	PathOrigin = fieldpath.New(1)
	PathName   = fieldpath.New(2)
	PathOwner  = fieldpath.New(3)
	PathSpeed  = fieldpath.New(4)
	PathItems  = fieldpath.New(5)
)

// Field paths of CTeam.
var (
	PathTeamNum   = fieldpath.New(0)
	PathTeamScore = fieldpath.New(1)
	PathTeamName  = fieldpath.New(2)
)

const maxItems = 6

// Options controls the generated stream.
type Options struct {
	Seed int64
	// Ticks is the number of entity packets after the setup messages.
	Ticks int
	// Units bounds the live units at any time.
	Units int
}

// DefaultOptions returns a small stream.
func DefaultOptions() Options {
	return Options{Seed: 1, Ticks: 300, Units: 32}
}

func i32(v int32) *int32     { return &v }
func f32(v float32) *float32 { return &v }

// Records returns the schema of the generated stream.
func Records() *schema.Records {
	return &schema.Records{
		Serializers: []schema.SerializerRecord{
			{Name: "CTeam", Fields: []schema.FieldRecord{
				{VarName: "m_iTeamNum", VarType: "uint8"},
				{VarName: "m_iScore", VarType: "int32"},
				{VarName: "m_szTeamname", VarType: "char[32]"},
			}},
			{Name: "CUnit", Fields: []schema.FieldRecord{
				{VarName: "m_iHealth", VarType: "int32"},
				{VarName: "m_vecOrigin", VarType: "Vector", Encoder: "coord"},
				{VarName: "m_iszUnitName", VarType: "CUtlSymbolLarge"},
				{VarName: "m_hOwnerEntity", VarType: "CHandle< CBaseEntity >"},
				{VarName: "m_flSpeed", VarType: "float32", BitCount: i32(10), LowValue: f32(0), HighValue: f32(1023)},
				{VarName: "m_vecItems", VarType: "CUtlVector< uint32 >"},
			}},
		},
		Classes: []schema.ClassRecord{
			{ClassID: ClassTeam, NetworkName: "CTeam"},
			{ClassID: ClassUnit, NetworkName: "CUnit"},
		},
	}
}

type unit struct {
	serial uint32
	items  int
}

// generator holds the simulated world between packets.
type generator struct {
	opts    Options
	rng     *rand.Rand
	reg     *schema.Registry
	pb      *engine.PacketBuilder
	units   map[int32]*unit
	serials uint32
	scores  [2]int32
}

// Generate produces the stream and hands every message to emit in order.
// The same options always produce the same stream.
func Generate(opts Options, emit func(*engine.Message) error) error {
	if opts.Units < 1 || opts.Units > entity.MaxEntities/4 {
		return fmt.Errorf("synth: units must be within 1..%d", entity.MaxEntities/4)
	}
	recs := Records()
	reg := schema.NewRegistry(nil)
	if err := reg.Apply(recs); err != nil {
		return err
	}
	g := &generator{
		opts:  opts,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		reg:   reg,
		pb:    engine.NewPacketBuilder(reg),
		units: make(map[int32]*unit),
	}

	if err := emit(&engine.Message{Kind: engine.KindSerializers, Schema: &schema.Records{Serializers: recs.Serializers}}); err != nil {
		return err
	}
	if err := emit(&engine.Message{Kind: engine.KindClassInfo, Schema: &schema.Records{Classes: recs.Classes}}); err != nil {
		return err
	}
	baselines, err := g.baselines()
	if err != nil {
		return err
	}
	if err := emit(&engine.Message{Kind: engine.KindStringTableBaselines, Baselines: baselines}); err != nil {
		return err
	}

	for tick := 1; tick <= opts.Ticks; tick++ {
		pe, err := g.packet(tick)
		if err != nil {
			return fmt.Errorf("synth: tick %d: %w", tick, err)
		}
		if err := emit(&engine.Message{Kind: engine.KindPacketEntities, Tick: uint32(tick), Entities: pe}); err != nil {
			return err
		}
	}
	return nil
}

func (g *generator) baselines() ([]engine.Baseline, error) {
	res := schema.NewResolver(g.reg)
	defaults := map[int32][]engine.Assignment{
		ClassTeam: {
			{Path: PathTeamNum, Value: fieldvalue.Uint32(0)},
			{Path: PathTeamScore, Value: fieldvalue.Int32(0)},
		},
		ClassUnit: {
			{Path: PathHealth, Value: fieldvalue.Int32(100)},
			{Path: PathName, Value: fieldvalue.String("npc_unit")},
			{Path: PathOwner, Value: fieldvalue.Handle(entity.InvalidHandle)},
			{Path: PathItems, Value: fieldvalue.Uint32(0)},
		},
	}
	var out []engine.Baseline
	for _, classID := range []int32{ClassTeam, ClassUnit} {
		s, err := g.reg.Get(classID)
		if err != nil {
			return nil, err
		}
		data, err := engine.EncodeBaseline(res, s, defaults[classID])
		if err != nil {
			return nil, err
		}
		out = append(out, engine.Baseline{Key: strconv.Itoa(int(classID)), Data: data})
	}
	return out, nil
}

// entry is one planned packet entry.
type entry struct {
	index int32
	write func() error
}

func (g *generator) packet(tick int) (*engine.PacketEntities, error) {
	var entries []entry

	if tick == 1 {
		for team := int32(0); team < 2; team++ {
			idx := team + 1
			entries = append(entries, entry{idx, func() error {
				return g.pb.Create(idx, ClassTeam, g.nextSerial(),
					engine.Assignment{Path: PathTeamNum, Value: fieldvalue.Uint32(uint32(idx + 1))},
					engine.Assignment{Path: PathTeamName, Value: fieldvalue.String([]string{"radiant", "dire"}[idx-1])},
				)
			}})
		}
	} else if tick%10 == 0 {
		team := int32(g.rng.Intn(2))
		g.scores[team]++
		score := g.scores[team]
		entries = append(entries, entry{team + 1, func() error {
			return g.pb.Update(team+1, ClassTeam, engine.Assignment{Path: PathTeamScore, Value: fieldvalue.Int32(score)})
		}})
	}

	touched := map[int32]bool{1: true, 2: true}
	// Spawn.
	for n := g.rng.Intn(3); n > 0 && len(g.units) < g.opts.Units; n-- {
		idx := g.freeIndex(touched)
		touched[idx] = true
		u := &unit{serial: g.nextSerial()}
		g.units[idx] = u
		fields := []engine.Assignment{
			{Path: PathOrigin, Value: g.origin()},
			{Path: PathSpeed, Value: fieldvalue.Float32(float32(g.rng.Intn(500)))},
		}
		if g.rng.Intn(2) == 0 {
			fields = append(fields, engine.Assignment{Path: PathOwner, Value: fieldvalue.Handle(entity.MakeHandle(1, 0))})
		}
		entries = append(entries, entry{idx, func() error {
			return g.pb.Create(idx, ClassUnit, u.serial, fields...)
		}})
	}

	for _, idx := range g.liveIndices() {
		if touched[idx] {
			continue
		}
		u := g.units[idx]
		switch r := g.rng.Intn(100); {
		case r < 3:
			delete(g.units, idx)
			entries = append(entries, entry{idx, func() error { return g.pb.Delete(idx) }})
		case r < 5:
			delete(g.units, idx)
			entries = append(entries, entry{idx, func() error { return g.pb.Leave(idx) }})
		case r < 45:
			fields := g.unitDelta(u)
			entries = append(entries, entry{idx, func() error { return g.pb.Update(idx, ClassUnit, fields...) }})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].index < entries[j].index })
	for _, e := range entries {
		if err := e.write(); err != nil {
			return nil, err
		}
	}
	return g.pb.Packet(tick > 1), nil
}

func (g *generator) unitDelta(u *unit) []engine.Assignment {
	fields := []engine.Assignment{
		{Path: PathHealth, Value: fieldvalue.Int32(int32(g.rng.Intn(101)))},
		{Path: PathOrigin, Value: g.origin()},
	}
	if g.rng.Intn(4) == 0 {
		n := g.rng.Intn(maxItems + 1)
		fields = append(fields, engine.Assignment{Path: PathItems, Value: fieldvalue.Uint32(uint32(n))})
		for j := u.items; j < n; j++ {
			fields = append(fields, engine.Assignment{Path: fieldpath.New(5, j), Value: fieldvalue.Uint32(uint32(1000 + g.rng.Intn(100)))})
		}
		u.items = n
	}
	return fields
}

// origin returns a vector on the 1/32 coord grid.
func (g *generator) origin() fieldvalue.Value {
	c := func() float32 { return float32(g.rng.Intn(8192*32)-4096*32) / 32 }
	return fieldvalue.Vector3(c(), c(), c())
}

func (g *generator) nextSerial() uint32 {
	g.serials++
	return g.serials & (1<<entity.SerialBits - 1)
}

// freeIndex picks an unused slot above the team slots.
func (g *generator) freeIndex(touched map[int32]bool) int32 {
	span := int32(g.opts.Units * 2)
	for {
		idx := 3 + int32(g.rng.Intn(int(span)))
		if _, live := g.units[idx]; !live && !touched[idx] {
			return idx
		}
	}
}

func (g *generator) liveIndices() []int32 {
	out := make([]int32, 0, len(g.units))
	for idx := range g.units {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
