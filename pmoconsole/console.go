package pmoconsole

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoplayer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmorenderer"
)

// Player est la partie du pmoplayer.Service pilotée par la console.
type Player interface {
	PlayMediaObject(item pmoplayer.Playable, stream, startWhenPrepared, prepareImmediately bool)
	SetRenderer(r *pmorenderer.Renderer)
	Pause()
	Resume()
	SeekTo(ms int64)
	EndPlayback()
	SetVolume(v int)
	VolumeUp() int
	VolumeDown() int
	Info() pmoplayer.Info
	Position() int64
	Duration() int64
}

// LineReader fournit les lignes saisies ; *readline.Instance en est un.
type LineReader interface {
	Readline() (string, error)
}

type prompter interface {
	SetPrompt(string)
}

type Console struct {
	player   Player
	registry *pmorenderer.Registry
	selector pmorenderer.Selector
	in       LineReader

	outMu sync.Mutex
	out   io.Writer

	unregister func()
}

// New branche la console sur player et registry. Les changements de la
// liste des renderers sont affichés dès qu'ils arrivent.
func New(player Player, registry *pmorenderer.Registry, in LineReader, out io.Writer) *Console {
	c := &Console{
		player:   player,
		registry: registry,
		in:       in,
		out:      out,
	}
	c.selector = &Picker{in: in, out: c}
	c.unregister = registry.AddListener(func(list []*pmorenderer.Renderer) {
		c.println(RenderRenderers(list, player.Info().Renderer))
	})
	return c
}

// NewTerminal ouvre une console readline sur le terminal.
func NewTerminal(player Player, registry *pmorenderer.Registry, history string) (*Console, *readline.Instance, error) {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, name := range commands {
		items = append(items, readline.PcItem(name))
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "pmo> ",
		HistoryFile:     history,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return nil, nil, err
	}
	return New(player, registry, rl, rl.Stdout()), rl, nil
}

// Selector retourne le sélecteur interactif de renderer.
func (c *Console) Selector() pmorenderer.Selector {
	return c.selector
}

func (c *Console) Write(p []byte) (int, error) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.out.Write(p)
}

func (c *Console) println(s string) {
	fmt.Fprintln(c, s)
}

// Run lit et exécute les commandes jusqu'à quit, EOF, ^C ou l'annulation
// de ctx.
func (c *Console) Run(ctx context.Context) error {
	defer c.unregister()

	for ctx.Err() == nil {
		line, err := c.in.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		cmd, err := Parse(line)
		if err != nil {
			c.println(errorStyle.Render("❌ " + err.Error()))
			continue
		}
		if quit := c.Execute(cmd); quit {
			return nil
		}
	}
	return nil
}

// Execute exécute cmd et indique si la console doit s'arrêter.
func (c *Console) Execute(cmd Command) (quit bool) {
	switch cmd.Name {
	case "":
	case "play":
		item, stream, err := pmoplayer.MediaFromArg(cmd.Arg)
		if err != nil {
			c.println(errorStyle.Render("❌ " + err.Error()))
			return false
		}
		log.Infof("▶️ play %s", cmd.Arg)
		c.player.PlayMediaObject(item, stream, true, true)
		// un renderer distant s'arrête à PREPARED
		c.player.Resume()
	case "pause":
		c.player.Pause()
	case "resume":
		c.player.Resume()
	case "stop":
		c.player.EndPlayback()
	case "seek":
		c.player.SeekTo(cmd.Millis)
	case "status":
		c.println(RenderStatus(c.player.Info(), c.player.Position(), c.player.Duration()))
	case "renderers":
		c.println(RenderRenderers(c.registry.List(), c.player.Info().Renderer))
	case "renderer":
		c.selectRenderer(cmd.Value)
	case "vol":
		c.player.SetVolume(cmd.Value)
	case "up", "down":
		v := c.player.VolumeUp
		if cmd.Name == "down" {
			v = c.player.VolumeDown
		}
		if vol := v(); vol == pmoplayer.NoRemotePlayer {
			c.println(mutedStyle.Render("no remote renderer"))
		} else {
			c.println(fmt.Sprintf("🔊 %d", vol))
		}
	case "help":
		c.println(mutedStyle.Render(strings.Join(commands, " ")))
	case "quit":
		return true
	}
	return false
}

func (c *Console) selectRenderer(index int) {
	if index >= 0 {
		r, ok := c.registry.Get(index)
		if !ok {
			c.println(errorStyle.Render(fmt.Sprintf("❌ no renderer #%d", index)))
			return
		}
		c.player.SetRenderer(r)
		return
	}

	r, ok := c.selector.SelectRenderer(c.registry.List(), c.player.Info().Renderer)
	if ok {
		c.player.SetRenderer(r)
	}
}

// Picker demande à l'utilisateur de choisir un renderer par son numéro.
type Picker struct {
	in  LineReader
	out io.Writer
}

func NewPicker(in LineReader, out io.Writer) *Picker {
	return &Picker{in: in, out: out}
}

func (p *Picker) SelectRenderer(list []*pmorenderer.Renderer, current *pmorenderer.Renderer) (*pmorenderer.Renderer, bool) {
	fmt.Fprintln(p.out, RenderRenderers(list, current))

	const prompt = "renderer # (empty to cancel): "
	if pr, ok := p.in.(prompter); ok {
		pr.SetPrompt(prompt)
		defer pr.SetPrompt("pmo> ")
	} else {
		fmt.Fprint(p.out, prompt)
	}

	line, err := p.in.Readline()
	if err != nil {
		return nil, false
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	var n int
	if _, err := fmt.Sscanf(line, "%d", &n); err != nil || n < 0 || n >= len(list) {
		fmt.Fprintln(p.out, errorStyle.Render("❌ invalid choice "+line))
		return nil, false
	}
	return list[n], true
}

var _ pmorenderer.Selector = (*Picker)(nil)
