// Command layoutctl drives one HO-scale layout: the composed control
// loop (compose.go) plus the thin operator-facing CLI surface that is
// this system's only out-of-scope layer (§6 "command-line option
// parsing" is an external collaborator; everything it calls into is
// in scope).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hotrack/layoutctl/internal/control"
	"github.com/hotrack/layoutctl/internal/layoutcfg"
	"github.com/hotrack/layoutctl/internal/logging"
	"github.com/hotrack/layoutctl/internal/persistence"
	"github.com/hotrack/layoutctl/internal/turnout"
)

// joinTimeout is how long StartWorkers waits for every worker to return
// after ctx is cancelled before giving up on a clean join (§5).
const joinTimeout = 3 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var (
		quiet          = flag.Bool("quiet", false, "suppress all but warnings and errors")
		debug          = flag.Int("debug", 0, "debug verbosity 0-3 (0=warn, 3=debug)")
		regen          = flag.Bool("regen-calibration", false, "write a fresh default calibration file and exit")
		testSignals    = flag.Bool("test-signals", false, "cycle every signal through red/yellow/green and exit")
		testTurnouts   = flag.Bool("test-turnouts", false, "sweep every turnout through open/middle/close and exit")
		testGradeX     = flag.Bool("test-grade-crossing", false, "force-trigger the grade crossing state machine and exit")
		testKeypad     = flag.Bool("test-keypad", false, "echo scanned yard keypad digits to the console")
		testSensors    = flag.Bool("test-sensors", false, "dump the live sensor snapshot once a second")
		testRelays     = flag.Bool("test-relays", false, "toggle every polarity relay and exit")
		testSound      = flag.Bool("test-sound", false, "play every known audio clip and exit")
		servoAdjust    = flag.Int("servo-adjust", 0, "step one turnout by index (1-based) through open/middle/close and exit")
		simulationPath = flag.String("simulation", "", "path to a simulation playback script (out of scope; logged only)")
	)
	flag.Parse()

	level := logging.LevelWarn
	switch {
	case *quiet:
		level = logging.LevelError
	case *debug >= 3:
		level = logging.LevelDebug
	case *debug == 2:
		level = logging.LevelDebug
	case *debug == 1:
		level = logging.LevelInfo
	}
	logger := logging.New(os.Stdout, level)
	log := logger.Component("main")

	sys := layoutcfg.DefaultSystem()

	if *regen {
		return regenerateCalibration(sys, logger)
	}

	rt, err := compose(sys, logger)
	if err != nil {
		log.Error("composition failed: %v", err)
		return 1
	}

	if *simulationPath != "" {
		log.Warn("simulation playback (%s) is an external collaborator; not run by this binary", *simulationPath)
	}

	switch {
	case *testSignals:
		return runDiagnostic(rt, log, diagTestSignals)
	case *testTurnouts:
		return runDiagnostic(rt, log, diagTestTurnouts)
	case *testGradeX:
		return runDiagnostic(rt, log, diagTestGradeCrossing)
	case *testKeypad:
		return runDiagnostic(rt, log, diagTestKeypad)
	case *testSensors:
		return runDiagnostic(rt, log, diagTestSensors)
	case *testRelays:
		return runDiagnostic(rt, log, diagTestRelays)
	case *testSound:
		return runDiagnostic(rt, log, diagTestSound)
	case *servoAdjust != 0:
		return runDiagnostic(rt, log, func(ctx context.Context, rt *runtime, log *logging.Scoped) error {
			return diagServoAdjust(ctx, rt, log, *servoAdjust)
		})
	}

	return runLive(rt, log)
}

// runDiagnostic wraps a diagnostic mode with the ^C-cancellable context
// every mode shares, so none of them needs its own signal plumbing.
func runDiagnostic(rt *runtime, log *logging.Scoped, fn func(ctx context.Context, rt *runtime, log *logging.Scoped) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := fn(ctx, rt, log); err != nil {
		log.Error("diagnostic failed: %v", err)
		return 1
	}
	return 0
}

// runLive starts every worker task, runs the main loop until the
// shutdown button's countdown completes or the process is signalled,
// then runs the quiesce sequence (§4.13, §4.14).
func runLive(rt *runtime, log *logging.Scoped) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workersDone := make(chan error, 1)
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	go func() { workersDone <- control.StartWorkers(workerCtx, joinTimeout, rt.workers...) }()

	loopCtx, cancelLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		rt.loop.Run(loopCtx)
	}()

	log.Info("layoutctl running")
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
loop:
	for {
		select {
		case <-ctx.Done():
			log.Info("signal received, shutting down")
			break loop
		case <-ticker.C:
			if rt.armer.Done() {
				log.Info("shutdown countdown complete")
				break loop
			}
		}
	}

	cancelLoop()
	<-loopDone
	cancelWorkers()
	if err := <-workersDone; err != nil {
		log.Warn("worker shutdown: %v", err)
	}

	seqCtx, cancelSeq := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelSeq()
	rt.sequencer.Run(seqCtx)
	log.Info("shutdown sequence complete")
	return 0
}

// regenerateCalibration writes a fresh calibration file from the layout's
// compiled-in defaults, backing up any existing file first (§6
// "regenerate default calibration file").
func regenerateCalibration(sys layoutcfg.System, logger *logging.Logger) int {
	log := logger.Component("regen-calibration")
	table, err := turnout.NewTable(layoutcfg.Turnouts())
	if err != nil {
		log.Error("building default turnout table: %v", err)
		return 1
	}
	records := make([]persistence.Record, 0, len(table.All()))
	for _, rec := range table.All() {
		records = append(records, persistence.FromTurnoutRecord(rec))
	}
	if err := persistence.Save(sys.CalibrationPath, records, true, log); err != nil {
		log.Error("writing %s: %v", sys.CalibrationPath, err)
		return 1
	}
	fmt.Printf("wrote %d default turnout records to %s\n", len(records), sys.CalibrationPath)
	return 0
}
