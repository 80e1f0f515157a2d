package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-shellwords"
)

// ExecConfig configures an engine backed by a local TTS binary.
//
// Command is a template; {text}, {voice}, {lang}, {rate} and {pitch} are
// substituted per argument. Without a {text} placeholder the text is written
// to the process stdin.
type ExecConfig struct {
	Command       string
	VoicesCommand string
	VoicesDir     string
}

// ExecEngine plays utterances by running a local TTS binary, one process
// per utterance.
type ExecEngine struct {
	cmd       []string
	voicesCmd []string
	voicesDir string
	logger    *slog.Logger

	mu       sync.Mutex
	active   *execPlayback
	paused   bool
	voices   []Voice
	watchers voiceWatchers

	watchOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

type execPlayback struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

func NewExecEngine(cfg ExecConfig, logger *slog.Logger) (*ExecEngine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine command empty")
	}
	var voicesArgs []string
	if strings.TrimSpace(cfg.VoicesCommand) != "" {
		voicesArgs, err = shellwords.NewParser().Parse(cfg.VoicesCommand)
		if err != nil {
			return nil, fmt.Errorf("parse voices command: %w", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ExecEngine{
		cmd:       args,
		voicesCmd: voicesArgs,
		voicesDir: cfg.VoicesDir,
		logger:    logger.With(slog.String("component", "exec-engine")),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

func (e *ExecEngine) Supported() bool {
	_, err := exec.LookPath(e.cmd[0])
	return err == nil
}

func (e *ExecEngine) ListVoices(ctx context.Context) ([]Voice, error) {
	if len(e.voicesCmd) == 0 {
		return nil, nil
	}
	out, err := exec.CommandContext(ctx, e.voicesCmd[0], e.voicesCmd[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}
	voices := parseVoiceList(string(out))
	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
	return voices, nil
}

func (e *ExecEngine) WatchVoices(ctx context.Context) <-chan []Voice {
	ch := e.watchers.add(ctx)
	if e.voicesDir != "" {
		e.watchOnce.Do(func() {
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				if err := e.watchDir(); err != nil {
					e.logger.Warn("voice directory watch stopped", slogError(err))
				}
			}()
		})
	}
	return ch
}

func (e *ExecEngine) watchDir() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(e.voicesDir); err != nil {
		return fmt.Errorf("watch dir %q: %w", e.voicesDir, err)
	}

	for {
		select {
		case <-e.ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				e.logger.Debug("voice directory changed", slog.String("file", filepath.Base(event.Name)))
				e.refreshVoices()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (e *ExecEngine) refreshVoices() {
	e.mu.Lock()
	prev := e.voices
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
	defer cancel()
	voices, err := e.ListVoices(ctx)
	if err != nil {
		e.logger.Warn("failed to refresh voices", slogError(err))
		return
	}
	if sameVoices(prev, voices) {
		return
	}
	e.watchers.publish(voices)
}

func (e *ExecEngine) Speak(ctx context.Context, req Request) (<-chan Result, error) {
	args, stdin := expandCommand(e.cmd, req)
	if len(args) == 0 {
		return nil, errors.New("engine command expanded to nothing")
	}

	e.Cancel()

	pctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(pctx, args[0], args[1:]...)
	if stdin {
		cmd.Stdin = strings.NewReader(req.Text)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}

	pb := &execPlayback{cmd: cmd, cancel: cancel}
	e.mu.Lock()
	e.active = pb
	e.paused = false
	e.mu.Unlock()

	results := make(chan Result, 1)
	go func() {
		defer close(results)
		defer cancel()
		err := cmd.Wait()

		e.mu.Lock()
		if e.active == pb {
			e.active = nil
			e.paused = false
		}
		e.mu.Unlock()

		results <- Result{Err: exitResult(pctx, err)}
	}()
	return results, nil
}

func exitResult(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &PlaybackError{Code: CodeInterrupted}
	}
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &PlaybackError{Code: fmt.Sprintf("exit-%d", exitErr.ExitCode())}
	}
	return &PlaybackError{Code: "exec-failed"}
}

func (e *ExecEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil || e.paused {
		return nil
	}
	if err := suspendProcess(e.active.cmd.Process); err != nil {
		return fmt.Errorf("pause playback: %w", err)
	}
	e.paused = true
	return nil
}

func (e *ExecEngine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil || !e.paused {
		return nil
	}
	if err := resumeProcess(e.active.cmd.Process); err != nil {
		return fmt.Errorf("resume playback: %w", err)
	}
	e.paused = false
	return nil
}

func (e *ExecEngine) Cancel() error {
	e.mu.Lock()
	pb := e.active
	e.active = nil
	e.paused = false
	e.mu.Unlock()
	if pb != nil {
		pb.cancel()
	}
	return nil
}

func (e *ExecEngine) Speaking() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

func (e *ExecEngine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil && e.paused
}

// Close stops playback and the voice directory watcher.
func (e *ExecEngine) Close() error {
	e.Cancel()
	e.cancel()
	e.wg.Wait()
	return nil
}

// expandCommand substitutes request fields into the command template. An
// argument that expands to nothing is dropped together with a preceding
// literal flag, so "-v {voice}" disappears when no voice is selected.
func expandCommand(template []string, req Request) ([]string, bool) {
	var name, lang string
	if req.Voice != nil {
		name, lang = req.Voice.Name, req.Voice.Language
	}
	replacer := strings.NewReplacer(
		"{text}", req.Text,
		"{voice}", name,
		"{lang}", lang,
		"{rate}", formatFloat(req.Rate),
		"{pitch}", formatFloat(req.Pitch),
	)

	stdin := true
	args := make([]string, 0, len(template))
	literal := make([]bool, 0, len(template))
	for _, tmpl := range template {
		if strings.Contains(tmpl, "{text}") {
			stdin = false
		}
		arg := replacer.Replace(tmpl)
		if arg == "" && tmpl != "" {
			if n := len(args); n > 1 && literal[n-1] && strings.HasPrefix(args[n-1], "-") {
				args = args[:n-1]
				literal = literal[:n-1]
			}
			continue
		}
		args = append(args, arg)
		literal = append(literal, arg == tmpl)
	}
	return args, stdin
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseVoiceList reads "name language" lines. Anything after '#' is a
// comment, names may contain spaces, the last field is the language.
func parseVoiceList(out string) []Voice {
	var voices []Voice
	for _, line := range strings.Split(out, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		switch len(fields) {
		case 0:
			continue
		case 1:
			voices = append(voices, Voice{Name: fields[0]})
		default:
			voices = append(voices, Voice{
				Name:     strings.Join(fields[:len(fields)-1], " "),
				Language: fields[len(fields)-1],
			})
		}
	}
	return voices
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}

var _ Engine = (*ExecEngine)(nil)
