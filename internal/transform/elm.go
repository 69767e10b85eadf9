package transform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	consolestream "github.com/wolfeidau/console-stream"
)

// Compiler compiles a DSL source file into JavaScript.
type Compiler interface {
	Compile(ctx context.Context, source string, debug bool) ([]byte, error)
}

// Elm compiles Elm modules with an external toolchain. The "debug" option
// forces the debugger on or off; otherwise it follows the build mode.
type Elm struct {
	Compiler Compiler
}

const elmModule = `var scope = {};
(function () {
%s
}).call(scope);
export var Elm = scope.Elm;
export default scope.Elm;
`

func (e *Elm) Apply(ctx context.Context, env *Env, a *Artifact, opts Options) (*Artifact, error) {
	if e.Compiler == nil {
		return nil, fmt.Errorf("%s: %w: no elm compiler configured", a.Source, ErrCompileFailed)
	}

	debug, ok := opts.Bool("debug")
	if !ok {
		debug = env.Mode.Debug()
	}

	compiled, err := e.Compiler.Compile(ctx, a.Source, debug)
	if err != nil {
		return nil, err
	}

	out := *a
	out.Contents = fmt.Appendf(nil, elmModule, compiled)
	out.Kind = KindJS
	return &out, nil
}

// ElmMake runs `elm make` in the current working directory, which must
// hold (or be below) the project's elm.json.
type ElmMake struct {
	// Binary is the elm executable, "elm" when empty
	Binary string
}

func (m *ElmMake) Compile(ctx context.Context, source string, debug bool) ([]byte, error) {
	binary := m.Binary
	if binary == "" {
		binary = "elm"
	}

	tmpDir, err := os.MkdirTemp("", "assetpipe-elm-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	output := filepath.Join(tmpDir, "elm.js")

	args := []string{"make", source, "--output", output}
	if debug {
		args = append(args, "--debug")
	} else {
		args = append(args, "--optimize")
	}

	log.Debug().Str("binary", binary).Strs("args", args).Msg("Compiling elm module")

	process := consolestream.NewProcess(binary, args,
		consolestream.WithPipeMode(),
		consolestream.WithFlushInterval(100*time.Millisecond),
		consolestream.WithEnvMap(map[string]string{
			"NO_COLOR": "1",
		}),
	)

	var (
		outputBuf bytes.Buffer
		exitCode  = -1
	)
	for event, err := range process.ExecuteAndStream(ctx) {
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCompileFailed, source, err)
		}

		switch e := event.Event.(type) {
		case *consolestream.OutputData:
			outputBuf.Write(e.Data)
		case *consolestream.ProcessEnd:
			exitCode = e.ExitCode
		}
	}

	if exitCode != 0 {
		return nil, fmt.Errorf("%w: %s: exit code %d: %s", ErrCompileFailed, source, exitCode, bytes.TrimSpace(outputBuf.Bytes()))
	}

	compiled, err := os.ReadFile(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading output: %w", ErrCompileFailed, source, err)
	}

	return compiled, nil
}
