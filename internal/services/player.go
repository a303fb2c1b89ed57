package services

import (
	"bytes"
	"fmt"
	"log"
	"os/exec"
	"runtime"
	"strings"

	"github.com/bobarin/speakrelay/internal/models"
	"github.com/mattn/go-shellwords"
)

// filePlaceholder marks where the audio path goes in a PLAYER_COMMAND override.
const filePlaceholder = "{file}"

// Player launches the host's audio player against a file.
//
// Defaults per platform:
//   - windows: cmd /C start "" <file>   (default associated app)
//   - darwin:  afplay <file>
//   - other:   mpg123 for MP3, aplay for WAV (install on the Pi)
type Player struct {
	goos     string
	encoding models.AudioEncoding
	device   string
	override []string
}

// NewPlayer builds a player for the current platform. command, when set,
// replaces the platform default; device selects the Linux output device.
func NewPlayer(command, device string, encoding models.AudioEncoding) (*Player, error) {
	return newPlayerFor(runtime.GOOS, command, device, encoding)
}

func newPlayerFor(goos, command, device string, encoding models.AudioEncoding) (*Player, error) {
	p := &Player{goos: goos, encoding: encoding, device: device}

	if strings.TrimSpace(command) != "" {
		args, err := shellwords.NewParser().Parse(command)
		if err != nil {
			return nil, fmt.Errorf("parse player command: %w", err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("player command empty")
		}
		p.override = args
	}

	return p, nil
}

// Command returns the argv that plays path.
func (p *Player) Command(path string) []string {
	if len(p.override) > 0 {
		args := make([]string, 0, len(p.override)+1)
		substituted := false
		for _, arg := range p.override {
			if strings.Contains(arg, filePlaceholder) {
				arg = strings.ReplaceAll(arg, filePlaceholder, path)
				substituted = true
			}
			args = append(args, arg)
		}
		if !substituted {
			args = append(args, path)
		}
		return args
	}

	switch p.goos {
	case "windows":
		return []string{"cmd", "/C", "start", "", path}
	case "darwin":
		return []string{"afplay", path}
	}

	if p.encoding == models.EncodingLinear16 {
		args := []string{"aplay", "-q"}
		if p.device != "" {
			args = append(args, "-D", p.device)
		}
		return append(args, path)
	}

	args := []string{"mpg123", "-q"}
	if p.device != "" {
		args = append(args, "-a", p.device)
	}
	return append(args, path)
}

// Start launches the player without waiting for it. The returned wait
// function blocks until the player exits and reports its exit status.
func (p *Player) Start(path string) (func() error, error) {
	args := p.Command(path)
	cmdline := strings.Join(args, " ")

	cmd := exec.Command(args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start %q: %v", models.ErrPlaybackFailed, cmdline, err)
	}

	log.Printf("[Player] Playback command started (pid=%d): %s", cmd.Process.Pid, cmdline)

	wait := func() error {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("%w: %q exited: %v: %s", models.ErrPlaybackFailed, cmdline, err, strings.TrimSpace(stderr.String()))
		}
		log.Printf("[Player] Playback finished (exit=%d): %s", cmd.ProcessState.ExitCode(), cmdline)
		return nil
	}
	return wait, nil
}
