package main

import (
	"context"
	"os"
	"strings"

	"jotline/internal/cli"
	"jotline/internal/model"
)

func isNodeID(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "nd-") && len(s) > len("nd-")
}

func isDate(s string) bool {
	_, err := model.ParseDate(strings.TrimSpace(s))
	return err == nil
}

// shortcutFor returns the subcommand a bare positional token stands for.
func shortcutFor(tok string) []string {
	switch {
	case isNodeID(tok):
		return []string{"nodes", "show"}
	case isDate(tok):
		return []string{"day"}
	default:
		return nil
	}
}

// rewriteShortcutArgs makes `jotline <node-id>` work like `jotline nodes show
// <node-id>` and `jotline <YYYY-MM-DD>` like `jotline day <date>`.
//
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten
// before parsing. Persistent flags may come first, so we look for the first
// positional token rather than argv[1].
func rewriteShortcutArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--dir":    true,
		"--config": true,
		"--format": true,
		"--today":  true,
		"--width":  true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	insert := func(i int, sub []string) []string {
		out := make([]string, 0, len(argv)+len(sub))
		out = append(out, argv[:i]...)
		out = append(out, sub...)
		out = append(out, argv[i:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) {
				if sub := shortcutFor(argv[i+1]); sub != nil {
					return insert(i+1, sub)
				}
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}

		if sub := shortcutFor(a); sub != nil {
			return insert(i, sub)
		}
		return argv
	}
	return argv
}

func main() {
	os.Args = rewriteShortcutArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
