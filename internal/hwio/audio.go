package hwio

import (
	"os/exec"
	"path/filepath"

	"github.com/hotrack/layoutctl/internal/logging"
)

// AudioPlayer plays a named sound clip (§1 "sound-file playback (opaque
// 'play this clip' call)"). The implementation lives entirely outside this
// module's scope; production wiring supplies a collaborator that shells
// out to a player or talks to an audio daemon. NoopAudioPlayer is used
// wherever no collaborator is configured, so callers never need a nil
// check.
type AudioPlayer interface {
	// PlayClip plays name at the given volume percentage (0-100),
	// fire-and-forget.
	PlayClip(name string, volumePct int)
}

// NoopAudioPlayer discards every PlayClip call.
type NoopAudioPlayer struct{}

func (NoopAudioPlayer) PlayClip(string, int) {}

// ExecAudioPlayer is the production collaborator: it shells out to an
// external player binary (normally "aplay") for each clip, resolving
// name to ClipDir/name+Ext. Fire-and-forget: PlayClip never blocks the
// caller on the player's exit, and a missing binary or file only logs.
type ExecAudioPlayer struct {
	Bin     string // player binary, e.g. "aplay"
	ClipDir string
	Ext     string // e.g. ".wav"
	Log     *logging.Scoped
}

// PlayClip runs Bin against ClipDir/name+Ext in the background. volumePct
// is not passed to the player: clips play at the player's own volume.
func (p *ExecAudioPlayer) PlayClip(name string, volumePct int) {
	path := filepath.Join(p.ClipDir, name+p.Ext)
	cmd := exec.Command(p.Bin, path)
	if err := cmd.Start(); err != nil {
		p.Log.Warn("audio: %s %s failed to start: %v", p.Bin, path, err)
		return
	}
	go func() { _ = cmd.Wait() }()
}
