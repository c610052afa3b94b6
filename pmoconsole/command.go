// Package pmoconsole est l'interface en ligne de commande du point de
// contrôle : lecture, choix du renderer et volume.
package pmoconsole

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command est une ligne de console analysée.
type Command struct {
	Name   string
	Arg    string
	Millis int64
	Value  int
}

var aliases = map[string]string{
	"q":    "quit",
	"exit": "quit",
	"ls":   "renderers",
	"+":    "up",
	"-":    "down",
	"p":    "pause",
	"r":    "resume",
	"?":    "help",
}

var commands = []string{
	"play", "pause", "resume", "stop", "seek", "status",
	"renderers", "renderer", "vol", "up", "down", "help", "quit",
}

// Parse analyse line. Une ligne vide donne une commande de nom vide.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, nil
	}
	name, arg, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	if a, ok := aliases[name]; ok {
		name = a
	}
	cmd := Command{Name: name, Arg: strings.TrimSpace(arg), Value: -1}

	switch name {
	case "play":
		if cmd.Arg == "" {
			return cmd, fmt.Errorf("play: missing URL or file")
		}
	case "seek":
		ms, ok := parseSeek(cmd.Arg)
		if !ok {
			return cmd, fmt.Errorf("seek: invalid position %q", cmd.Arg)
		}
		cmd.Millis = ms
	case "vol":
		v, err := strconv.Atoi(cmd.Arg)
		if err != nil || v < 0 || v > 100 {
			return cmd, fmt.Errorf("vol: expected 0-100, got %q", cmd.Arg)
		}
		cmd.Value = v
	case "renderer":
		if cmd.Arg != "" {
			n, err := strconv.Atoi(cmd.Arg)
			if err != nil || n < 0 {
				return cmd, fmt.Errorf("renderer: invalid index %q", cmd.Arg)
			}
			cmd.Value = n
		}
	case "pause", "resume", "stop", "status", "renderers", "up", "down", "help", "quit":
	default:
		return cmd, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	return cmd, nil
}

// parseSeek accepte des secondes, m:ss ou h:mm:ss.
func parseSeek(s string) (int64, bool) {
	switch strings.Count(s, ":") {
	case 0:
		sec, err := strconv.ParseFloat(s, 64)
		if err != nil || sec < 0 {
			return 0, false
		}
		return int64(sec * 1000), true
	case 1:
		s = "0:" + s
	}
	ms, ok := pmoupnp.ParseTime(s)
	return ms, ok && ms >= 0
}
