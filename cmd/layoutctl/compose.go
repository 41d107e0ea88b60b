package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hotrack/layoutctl/internal/control"
	"github.com/hotrack/layoutctl/internal/crossing"
	"github.com/hotrack/layoutctl/internal/hwio"
	"github.com/hotrack/layoutctl/internal/inputs"
	"github.com/hotrack/layoutctl/internal/layoutcfg"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/persistence"
	"github.com/hotrack/layoutctl/internal/sections"
	"github.com/hotrack/layoutctl/internal/sensorbus"
	"github.com/hotrack/layoutctl/internal/servo"
	"github.com/hotrack/layoutctl/internal/shutdown"
	"github.com/hotrack/layoutctl/internal/signaling"
	"github.com/hotrack/layoutctl/internal/signalreg"
	"github.com/hotrack/layoutctl/internal/status"
	"github.com/hotrack/layoutctl/internal/turnout"
	"github.com/hotrack/layoutctl/internal/yard"
)

// nullI2C always fails its transaction, so any bus built on it behaves
// exactly like every device on it failed its probe (§7 DeviceAbsent):
// used when the host has no real I²C bus (non-Linux dev build, or a bus
// id the system config didn't resolve).
type nullI2C struct{}

func (nullI2C) Tx(uint16, []byte, []byte) error { return fmt.Errorf("no i2c transport wired") }

// nullPin is an unbacked pin that reads low/false forever; resolvePin
// falls back to it when pin n is not in pf, so composition always
// succeeds structurally even with no GPIO chip present.
type nullPin struct{ n int }

func (p nullPin) ConfigureInput(hwio.Pull) error   { return nil }
func (p nullPin) ConfigureOutput(bool) error       { return nil }
func (p nullPin) Set(bool)                         {}
func (p nullPin) Get() bool                        { return false }
func (p nullPin) Number() int                      { return p.n }

func resolvePin(pf hwio.PinFactory, n int, log *logging.Scoped) hwio.Pin {
	if pin, ok := pf.ByNumber(n); ok {
		return pin
	}
	log.Warn("gpio %d not available; using an inert stand-in", n)
	return nullPin{n: n}
}

// runtime bundles every collaborator the main loop and the shutdown
// sequencer need, so main() has one object to drive and tear down.
type runtime struct {
	log *logging.Scoped
	sys layoutcfg.System

	loop      *control.Loop
	workers   []control.Worker
	armer     *shutdown.Armer
	sequencer *shutdown.Sequencer

	turnouts *turnout.Table
	mover    *turnout.Mover
	signals  *signalreg.Registry
	driver   *signalreg.Driver
	servos   *servo.Manager

	chip1, chip2, chip3, chip4 *sensorbus.Expander

	sensors   *sensorbus.Reader
	crossings []*crossing.Controller
	keypad    *inputs.KeypadScanner
	buttons   *inputs.ButtonScanner
	relays    []*sections.Relay
	audio     hwio.AudioPlayer
}

// compose wires one physical layout (sys, the default data model from
// layoutcfg) into a running runtime. Every hardware probe failure is
// non-fatal (§7 DeviceAbsent) except a turnout/signal calibration
// mismatch, which is ConfigurationInvalid and aborts startup.
func compose(sys layoutcfg.System, logger *logging.Logger) (*runtime, error) {
	log := logger.Component("compose")

	pinFactory, err := hwio.NewHostPinFactory()
	if err != nil {
		log.Warn("gpio factory unavailable: %v; every pin will be an inert stand-in", err)
		pinFactory = &hwio.HostPinFactory{}
	}
	i2cFactory, err := hwio.NewHostI2CFactory(map[string]string{sys.I2CBus: sys.I2CBus})
	if err != nil {
		log.Warn("i2c factory unavailable: %v; every device will read absent", err)
		i2cFactory = &hwio.HostI2CFactory{}
	}
	raw, ok := i2cFactory.ByID(sys.I2CBus)
	if !ok {
		log.Warn("i2c bus %s not available; every device on it will read absent", sys.I2CBus)
		raw = nullI2C{}
	}
	bus := hwio.NewBus(raw, logger.Component(sys.I2CBus))

	rt := &runtime{log: log, sys: sys}

	rt.servos, err = servo.NewManager(bus, logger.Component("servo"), sys.ServoBoard1Addr, sys.ServoBoard2Addr)
	if err != nil {
		return nil, fmt.Errorf("servo manager: %w", err)
	}

	dataPin := resolvePin(pinFactory, sys.ShiftData, log)
	clockPin := resolvePin(pinFactory, sys.ShiftClock, log)
	latchPin := resolvePin(pinFactory, sys.ShiftLatch, log)
	enablePin := resolvePin(pinFactory, sys.ShiftEnable, log)
	rt.driver, err = signalreg.New(dataPin, clockPin, latchPin, enablePin, logger.Component("signalreg"))
	if err != nil {
		return nil, fmt.Errorf("signal driver: %w", err)
	}
	rt.signals = signalreg.NewRegistry(rt.driver, layoutcfg.Signals())

	rt.chip1 = sensorbus.NewExpander(sys.BlockSensorAddr, bus, logger.Component("chip1"))
	rt.chip2 = sensorbus.NewExpander(sys.TrackSensorAddr, bus, logger.Component("chip2"))
	rt.chip3 = sensorbus.NewExpander(sys.KeypadAddr, bus, logger.Component("chip3"))
	rt.chip4 = sensorbus.NewExpander(sys.PanelAddr, bus, logger.Component("chip4"))
	if err := rt.chip1.Init(sensorbus.ChipConfig{DirA: 0xFF, DirB: 0xFF, PullA: 0xFF, PullB: 0xFF}); err != nil {
		return nil, fmt.Errorf("chip1 init: %w", err)
	}
	if err := rt.chip2.Init(sensorbus.ChipConfig{DirA: 0xFF, DirB: 0xFF, PullA: 0xFF, PullB: 0xFF}); err != nil {
		return nil, fmt.Errorf("chip2 init: %w", err)
	}
	if err := rt.chip3.Init(sensorbus.ChipConfig{DirA: 0x00, DirB: 0xFF, PullB: 0xFF}); err != nil {
		return nil, fmt.Errorf("chip3 init: %w", err)
	}
	if err := rt.chip4.Init(sensorbus.ChipConfig{DirA: 0xFF, DirB: 0x00, PullA: 0xFF}); err != nil {
		return nil, fmt.Errorf("chip4 init: %w", err)
	}
	sensors := &sensorbus.Reader{Chip1: rt.chip1, Chip2: rt.chip2}

	records := layoutcfg.Turnouts()
	if loaded, err := persistence.Load(sys.CalibrationPath, logger.Component("persistence")); err != nil {
		log.Warn("calibration load: %v", err)
	} else {
		applyCalibration(records, loaded)
	}
	rt.turnouts, err = turnout.NewTable(records)
	if err != nil {
		return nil, fmt.Errorf("turnout table: %w", err)
	}

	temp := &turnout.AmbientTemp{}
	rt.mover = turnout.NewMover(rt.turnouts, rt.servos, temp, logger.Component("mover"))
	tempSensor := hwio.NewTempSensor(sys.TempSensorPath)

	semaphores := turnout.NewSemaphoreController(rt.turnouts, rt.mover, rt.signals, logger.Component("semaphore"), layoutcfg.SemaphoreRecords())
	colorer := signaling.NewColorer(layoutcfg.BlockRules(), rt.signals, semaphores, layoutcfg.SemaphoreTurnout(), logger.Component("colorer"))

	holdoverRelay, err := sections.NewRelay(resolvePin(pinFactory, sys.PolarityRelayHoldover, log))
	if err != nil {
		return nil, fmt.Errorf("holdover relay: %w", err)
	}
	routeLockLED := resolvePin(pinFactory, sys.RouteLockIndicatorGPIO, log)
	audio := &hwio.ExecAudioPlayer{Bin: "aplay", ClipDir: "/usr/share/layoutctl/clips", Ext: ".wav", Log: logger.Component("audio")}
	rt.audio = audio
	holdover := sections.NewHoldover(layoutcfg.Holdover(), holdoverRelay, rt.mover, audio, routeLockLED, logger.Component("holdover"))

	t05cfg, t06cfg := layoutcfg.Midways()
	midwayT05 := sections.NewMidway(t05cfg, rt.turnouts, rt.mover, logger.Component("midway-t05"))
	midwayT06 := sections.NewMidway(t06cfg, rt.turnouts, rt.mover, logger.Component("midway-t06"))

	wyeRelay, err := sections.NewRelay(resolvePin(pinFactory, sys.PolarityRelayWye, log))
	if err != nil {
		return nil, fmt.Errorf("wye relay: %w", err)
	}
	wye := sections.NewWye(layoutcfg.Wye(), rt.turnouts, rt.mover, wyeRelay, logger.Component("wye"))

	var crossings []*crossing.Controller
	var lampTasks []control.Worker
	for _, rec := range layoutcfg.Crossings() {
		lamp := crossing.NewLampTask(rec.LampSignal,
			crossing.BellBit{Chip: rt.chip4, Bit: 0},
			crossing.BellBit{Chip: rt.chip4, Bit: 1},
			rt.signals, logger.Component(fmt.Sprintf("crossing-%d", rec.Index)))
		crossings = append(crossings, crossing.NewController(rec, lamp, rt.turnouts, rt.mover, logger.Component(fmt.Sprintf("crossing-%d", rec.Index))))
		lampTasks = append(lampTasks, lamp)
	}
	rt.crossings = crossings

	yardTable := yard.NewTable(layoutcfg.YardRoutes())
	keypadIndicator := resolvePin(pinFactory, sys.KeypadIndicatorGPIO, log)
	yardKeys := yard.NewKeyEntry(keypadIndicator)
	yardExec := yard.NewExecutor(yardTable, rt.turnouts, rt.mover, audio, logger.Component("yard"))

	keypad := inputs.NewKeypadScanner(inputs.KeypadExpander{Chip: rt.chip3}, inputs.KeypadExpander{Chip: rt.chip3}, logger.Component("keypad"))
	buttons := inputs.NewButtonScanner(inputs.ButtonExpander{Chip: rt.chip4}, logger.Component("buttons"))
	rt.keypad = keypad
	rt.buttons = buttons
	rt.sensors = sensors
	rt.relays = []*sections.Relay{holdoverRelay, wyeRelay}

	statusWriter := &status.Writer{Dir: sys.StatusDir, Turnouts: rt.turnouts, Signals: rt.signals, Crossings: crossings, Log: logger.Component("status")}

	shutdownPin := resolvePin(pinFactory, sys.ShutdownButtonGPIO, log)
	armer, err := shutdown.NewArmer(shutdownPin, audio, logger.Component("shutdown"))
	if err != nil {
		return nil, fmt.Errorf("shutdown armer: %w", err)
	}
	rt.armer = armer

	loop := control.NewLoop(control.Config{
		Log:     logger.Component("loop"),
		Sensors: sensors,
		Holdover: holdover,
		Midways: []control.MidwayUnit{
			{Midway: midwayT05, Sibling: midwayT06},
			{Midway: midwayT06, Sibling: midwayT05},
		},
		Wye:         wye,
		Crossings:   crossings,
		Colorer:     colorer,
		BlockBits:   layoutcfg.BlockBits(),
		YardExec:    yardExec,
		YardKeys:    yardKeys,
		Keypad:      keypad,
		Buttons:     buttons,
		Semaphores:  semaphores,
		Mover:       rt.mover,
		Temp:        temp,
		TempSensor:  tempSensor,
		StatusEvery: 10,
		Status:      statusWriter,
		Shutdown:    armer,
	}, time.Now())
	rt.loop = loop

	registerButtons(loop, holdover, midwayT05, midwayT06)

	rt.workers = append(rt.workers, rt.driver, keypad, buttons)
	rt.workers = append(rt.workers, lampTasks...)

	rt.sequencer = &shutdown.Sequencer{
		Turnouts:        rt.turnouts,
		Mover:           rt.mover,
		Servos:          rt.servos,
		Signals:         rt.driver,
		Relays:          []*sections.Relay{holdoverRelay, wyeRelay},
		KeyEntry:        yardKeys,
		Chip4:           rt.chip4,
		CalibrationPath: sys.CalibrationPath,
		Log:             logger.Component("shutdown-seq"),
	}

	return rt, nil
}

// registerButtons wires the four holdover explicit-route buttons (1-4)
// and the two midway toggle buttons (5, 6) to their component calls
// (§4.12). Button indices are this composition's choice, not a hardware
// constant.
func registerButtons(loop *control.Loop, holdover *sections.Holdover, t05, t06 *sections.Midway) {
	for i := 0; i < 4; i++ {
		routeIdx := i
		loop.RegisterButton(i+1, func(ctx context.Context, ev inputs.ButtonEvent, now time.Time) {
			if _, err := holdover.RequestRoute(ctx, routeIdx, now); err != nil {
				return
			}
		})
	}
	loop.RegisterButton(5, func(ctx context.Context, ev inputs.ButtonEvent, now time.Time) {
		_ = t05.HandleButtonPress(ctx, now, t06)
	})
	loop.RegisterButton(6, func(ctx context.Context, ev inputs.ButtonEvent, now time.Time) {
		_ = t06.HandleButtonPress(ctx, now, t05)
	})
}

// applyCalibration overwrites each default record's runtime-adjustable
// fields with the matching loaded calibration record, by turnout index;
// a default with no matching saved record keeps its layoutcfg values
// (first boot, or a newly-added turnout).
func applyCalibration(defaults []*turnout.Record, loaded []persistence.Record) {
	byIdx := make(map[int]persistence.Record, len(loaded))
	for _, r := range loaded {
		byIdx[r.Turnout] = r
	}
	for _, rec := range defaults {
		saved, ok := byIdx[rec.Index]
		if !ok {
			continue
		}
		rec.Rate = saved.Rate
		rec.Open = saved.Open
		rec.Middle = saved.Middle
		rec.Close = saved.Close
		rec.Min = saved.MinPos
		rec.Max = saved.MaxPos
		rec.InitialCurrent = saved.Pos
	}
}
