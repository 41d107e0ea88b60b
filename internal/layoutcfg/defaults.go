package layoutcfg

import (
	"github.com/hotrack/layoutctl/internal/crossing"
	"github.com/hotrack/layoutctl/internal/sections"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/servo"
	"github.com/hotrack/layoutctl/internal/signaling"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/internal/yard"
	"github.com/hotrack/layoutctl/types"
)

// Sensor bit indices (0-31, §3 "sensor map"). Bits 0-15 live on the
// block-sensor chip, 16-31 on the track-sensor chip (sensorbus.Snapshot).
const (
	sensorS1 = 0 // holdover entry
	sensorS2 = 1 // siding B2 exit
	sensorS3 = 2 // siding B1 exit
	blockB1  = 3
	blockB2  = 4
	blockB3  = 5

	sensorS4 = 6 // midway T05
	sensorS5 = 7 // midway T06

	sensorS7 = 8 // wye approach
	sensorS8 = 9
	sensorS9 = 10

	crossingAprE = 11
	crossingRoad = 12
	crossingAprW = 13

	blockMain1 = 14
	blockMain2 = 15
	blockMain3 = 16
	blockMain4 = 17
)

// Turnouts returns the default turnout calibration records: T01 is a
// gate/semaphore-class device (temperature-compensated), T02 a plain
// wayside turnout, T03/T04 the holdover's route turnouts, T05/T06 the
// midway pair, T07 the wye, T08 the grade crossing's gate.
func Turnouts() []*turnout.Record {
	mk := func(idx int, label string, gateOrSemaphore bool, tempOrientation int) *turnout.Record {
		addr, port, err := servoLookup(idx)
		if err != nil {
			panic(err) // programmer error: bad static layout table
		}
		return &turnout.Record{
			Index:             idx,
			Label:             label,
			Addr:              addr,
			Port:              port,
			Rate:              4000,
			Open:              600,
			Middle:            450,
			Close:             300,
			Min:               250,
			Max:               650,
			IsGateOrSemaphore: gateOrSemaphore,
			TempOrientation:   tempOrientation,
			InitialCurrent:    300,
		}
	}
	return []*turnout.Record{
		mk(1, "semaphore-L02", true, 1),
		mk(2, "wayside", false, 0),
		mk(3, "holdover-in", false, 0),
		mk(4, "holdover-out", false, 0),
		mk(5, "midway-T05", false, 0),
		mk(6, "midway-T06", false, 0),
		mk(7, "wye-T07", false, 0),
		mk(8, "crossing-gate", true, -1),
	}
}

func servoLookup(idx int) (addr uint16, port int, err error) {
	return servo.Index(idx)
}

// Signals returns the default signal records. L01 is a wayside
// shift-register signal; L02 is the lamp half of the T01 semaphore.
func Signals() []signalreg.Signal {
	return []signalreg.Signal{
		{Index: 1, BitLo: 0, BitHi: 1},
		{Index: 2, BitLo: 2, BitHi: 3}, // semaphore lamp half of T01
		{Index: 3, BitLo: 4, BitHi: 5}, // grade-crossing GC01 wig-wag lamp
	}
}

// SemaphoreTurnout maps the semaphore signal's index to its actuating
// turnout, for signaling.NewColorer's semaphoreTurnout argument.
func SemaphoreTurnout() map[int]int {
	return map[int]int{2: 1}
}

// SemaphoreRecords seeds turnout.NewSemaphoreController.
func SemaphoreRecords() []*turnout.SemaphoreRecord {
	return []*turnout.SemaphoreRecord{
		{Index: 1, TurnoutIdx: 1, LampSignal: 2},
	}
}

// BlockRules is the default block->signal aspect table (§4.8). Block 1
// demands L01 at green/yellow/red; block 2 demands the semaphore
// (signal 2) the same way.
func BlockRules() []signaling.BlockRule {
	return []signaling.BlockRule{
		{Block: 1, Green: []int{1}, Yellow: []int{1}, Red: []int{1}},
		{Block: 2, Green: []int{2}, Yellow: []int{2}, Red: []int{2}},
	}
}

// BlockBits maps a block number to the sensor bit that reports it
// occupied, for Loop.Config.BlockBits.
func BlockBits() map[int]int {
	return map[int]int{
		1: blockMain1,
		2: blockMain2,
	}
}

// SensorMap returns the full 32-entry descriptive sensor map (§3). Every
// entry must be filled since Map.Entries is a fixed array; bits with no
// assigned meaning are labeled "unused" but still validate.
func SensorMap() sensorbus.Map {
	var m sensorbus.Map
	labels := map[int]string{
		sensorS1:     "holdover entry (S1)",
		sensorS2:     "siding B2 (S2)",
		sensorS3:     "siding B1 (S3)",
		blockB1:      "holdover block 1",
		blockB2:      "holdover block 2",
		blockB3:      "holdover block 3",
		sensorS4:     "midway T05 (S4)",
		sensorS5:     "midway T06 (S5)",
		sensorS7:     "wye approach (S7)",
		sensorS8:     "wye (S8)",
		sensorS9:     "wye (S9)",
		crossingAprE: "crossing approach east",
		crossingRoad: "crossing road",
		crossingAprW: "crossing approach west",
		blockMain1:   "main block 1",
		blockMain2:   "main block 2",
		blockMain3:   "main block 3",
		blockMain4:   "main block 4",
	}
	for i := 0; i < 32; i++ {
		chip := 1
		if i >= 16 {
			chip = 2
		}
		port := "A"
		if i%16 >= 8 {
			port = "B"
		}
		desc, ok := labels[i]
		if !ok {
			desc = "unused"
		}
		m.Entries[i] = sensorbus.BitEntry{
			Index:       i,
			Chip:        chip,
			Port:        port,
			BitInPort:   i % 8,
			Description: desc,
		}
	}
	return m
}

// Crossings returns the default grade-crossing records (§3, §4.7). GC01
// has one gate (T08) and its own dedicated wig-wag lamp (L03), distinct
// from the wayside/semaphore signals the colorer (C8) manages.
func Crossings() []*crossing.Record {
	return []*crossing.Record{
		{
			Index:        1,
			AprE:         crossingAprE,
			Road:         crossingRoad,
			AprW:         crossingAprW,
			LampSignal:   3,
			GateTurnouts: []int{8},
		},
	}
}

// Holdover returns the default holdover (reverse-loop) configuration.
func Holdover() sections.HoldoverConfig {
	return sections.HoldoverConfig{
		S1: sensorS1, S2: sensorS2, S3: sensorS3,
		B1: blockB1, B2: blockB2, B3: blockB3,
		Inbound: map[types.Siding]sections.RouteSpec{
			types.SidingB1: {Steps: []sections.RouteStep{{Turnout: 3, Target: types.PosOpen}}, Polarity: true},
			types.SidingB2: {Steps: []sections.RouteStep{{Turnout: 3, Target: types.PosClose}}, Polarity: false},
		},
		Outbound: map[types.Siding]sections.RouteSpec{
			types.SidingB1: {Steps: []sections.RouteStep{{Turnout: 4, Target: types.PosOpen}}, Polarity: false},
			types.SidingB2: {Steps: []sections.RouteStep{{Turnout: 4, Target: types.PosClose}}, Polarity: true},
		},
		ExplicitRoutes: [4]sections.RouteSpec{
			{Steps: []sections.RouteStep{{Turnout: 3, Target: types.PosOpen}, {Turnout: 4, Target: types.PosOpen}}, Polarity: true},
			{Steps: []sections.RouteStep{{Turnout: 3, Target: types.PosClose}, {Turnout: 4, Target: types.PosClose}}, Polarity: false},
			{Steps: []sections.RouteStep{{Turnout: 3, Target: types.PosMiddle}}, Polarity: true},
			{Steps: []sections.RouteStep{{Turnout: 4, Target: types.PosMiddle}}, Polarity: false},
		},
	}
}

// Midways returns the default midway (spring-loaded siding) pair: T05
// and T06. The two are each other's derail-guard sibling (§4.12).
func Midways() (t05, t06 sections.MidwayConfig) {
	t05 = sections.MidwayConfig{TurnoutIdx: 5, SensorIdx: sensorS4, ActivePos: types.PosOpen, InactivePos: types.PosClose}
	t06 = sections.MidwayConfig{TurnoutIdx: 6, SensorIdx: sensorS5, ActivePos: types.PosOpen, InactivePos: types.PosClose}
	return t05, t06
}

// Wye returns the default wye configuration.
func Wye() sections.WyeConfig {
	return sections.WyeConfig{TurnoutIdx: 7, S7: sensorS7, S8: sensorS8, S9: sensorS9}
}

// YardRoutes returns the default yard route table: route key "R45" (raw
// key "45") steps T03/T04 open, its lowercase mirror "r45" (requested by
// keying "45" a second time in a row) steps them closed (executor.go's
// "R"/"r" lookup-key convention, §4.11).
func YardRoutes() map[string][]yard.Step {
	return map[string][]yard.Step{
		"R45": {{Turnout: 3, Target: types.PosOpen}, {Turnout: 4, Target: types.PosOpen}},
		"r45": {{Turnout: 3, Target: types.PosClose}, {Turnout: 4, Target: types.PosClose}},
	}
}
