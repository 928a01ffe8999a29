package picker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/PurpleMyst/redditbg/internal/logger"
)

// pathPlaceholder marks where the wallpaper path goes in a configured setter
// command. Commands without it get the path appended as the last argument.
const pathPlaceholder = "{path}"

// Setter applies a wallpaper file to the desktop. The OS-specific call stays
// behind this interface; the pipeline only hands over a path.
type Setter interface {
	Set(ctx context.Context, path string) error
}

// CommandSetter shells out to a user-configured command, the portable way to
// reach whatever desktop environment is running (feh, swaybg, osascript,
// gsettings and friends).
type CommandSetter struct {
	argv   []string
	logger *logger.Logger
}

// NewCommandSetter creates a CommandSetter from a configured argv.
// Parameters:
//   - argv: command and arguments; occurrences of {path} are replaced with
//     the wallpaper path, and a command without the placeholder gets the path
//     appended.
//   - log: logger; nil uses the default logger.
// Returns:
//   - *CommandSetter: initialized setter.
//   - error: non-nil if argv is empty.
func NewCommandSetter(argv []string, log *logger.Logger) (*CommandSetter, error) {
	if len(argv) == 0 {
		return nil, errors.New("setter command is empty")
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &CommandSetter{
		argv:   argv,
		logger: log.WithField(logger.FieldComponent, "setter"),
	}, nil
}

// Set runs the configured command for the given wallpaper path.
// Parameters:
//   - ctx: context for cancellation; a cancelled context kills the command.
//   - path: wallpaper file to apply.
// Returns:
//   - error: non-nil if the command cannot start or exits non-zero.
func (s *CommandSetter) Set(ctx context.Context, path string) error {
	argv := buildArgv(s.argv, path)

	s.logger.WithField("command", strings.Join(argv, " ")).Info("Setting wallpaper")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("setter command failed: %w (output: %s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// buildArgv substitutes the wallpaper path into a configured argv. Without a
// placeholder the path is appended.
func buildArgv(argv []string, path string) []string {
	out := make([]string, len(argv))
	substituted := false
	for i, a := range argv {
		if strings.Contains(a, pathPlaceholder) {
			out[i] = strings.ReplaceAll(a, pathPlaceholder, path)
			substituted = true
			continue
		}
		out[i] = a
	}
	if !substituted {
		out = append(out, path)
	}
	return out
}

// NopSetter is the Setter for headless use: it logs the pick and applies
// nothing.
type NopSetter struct{}

// Set logs the path and succeeds.
// Parameters:
//   - ctx: context carrying the run's logger fields.
//   - path: wallpaper file that would have been applied.
// Returns:
//   - error: always nil.
func (NopSetter) Set(ctx context.Context, path string) error {
	logger.CtxInfo(ctx, "No setter configured; wallpaper ready at %s", path)
	return nil
}
