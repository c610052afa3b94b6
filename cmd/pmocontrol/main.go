package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/fileutils"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/netutils"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoconfig"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoconsole"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmocover"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoengine"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmolog"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoplayer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoremote"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmorenderer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoserver"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/ssdp"
)

type statusEvent struct {
	Status   string `json:"status"`
	Title    string `json:"title,omitempty"`
	Renderer string `json:"renderer"`
}

type rendererEvent struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CanPause bool   `json:"canPause"`
}

func main() {
	configPath := flag.String("config", "", "configuration file")
	logLevel := flag.String("log", "", "log level (overrides the configuration)")
	flag.Parse()

	cfg := pmoconfig.LoadConfig(*configPath)
	pmoconfig.SetConfig(cfg)

	level := cfg.GetLogLevel()
	if *logLevel != "" {
		level = *logLevel
	}
	pmolog.Setup(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := pmorenderer.NewRegistry()
	broker := pmolog.Default

	covers, err := pmocover.FromConfig(cfg)
	if err != nil {
		log.Fatalf("❌ cover cache: %v", err)
	}
	defer covers.Close()

	server, err := pmoserver.NewServer("pmocontrol "+cfg.GetControlPointUDN(), cfg,
		pmoserver.WithCovers(covers, cfg.GetCoverVariantSize()),
		pmoserver.WithBroker(broker),
		pmoserver.WithRegistry(registry),
	)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	factory := pmoplayer.NewEngineFactory(
		func() pmoengine.Engine { return pmoengine.NewLocalEngine() },
		pmoremote.WithConfig(cfg),
	)
	player := pmoplayer.NewService(registry, factory,
		pmoplayer.WithConfig(cfg),
		pmoplayer.WithPublisher(server),
		pmoplayer.WithArtwork(server),
		pmoplayer.WithCallback(pmoplayer.CallbackFuncs{
			OnStatus: func(info pmoplayer.Info) {
				ev := statusEvent{Status: info.Status.String(), Renderer: info.Renderer.Name()}
				if info.Media != nil {
					ev.Title = info.Media.Metadata().Title
				}
				broker.Publish("status", ev)
			},
			OnError: func(what, extra int) {
				log.Errorf("❌ media error (%d, %d)", what, extra)
			},
			OnEnded: func(media pmoplayer.Playable) {
				log.Infof("⏹️ %s ended", media.Identifier())
			},
		}),
	)
	defer player.Close()
	server.SetPlayer(player)

	unregister := registry.AddListener(func(list []*pmorenderer.Renderer) {
		evs := make([]rendererEvent, 0, len(list))
		for _, r := range list {
			evs = append(evs, rendererEvent{ID: r.ID(), Name: r.Name(), CanPause: r.CanPause()})
		}
		broker.Publish("renderers", evs)
	})
	defer unregister()

	if err := server.Start(); err != nil {
		log.Fatalf("❌ HTTP server: %v", err)
	}

	browserOpts := []ssdp.Option{ssdp.WithSearch(cfg.GetDiscoveryWait(), cfg.GetSearchInterval())}
	if iface := cfg.GetInterface(); iface != "" {
		ip, err := netutils.LocalIP(iface)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		browserOpts = append(browserOpts, ssdp.WithLocalAddr(ip+":0"))
	}
	browser := ssdp.NewBrowser(registry, browserOpts...)
	if err := browser.Start(); err != nil {
		log.Fatalf("❌ SSDP: %v", err)
	}
	defer browser.Close()

	history := ""
	if dir, err := os.UserCacheDir(); err == nil {
		if err := fileutils.EnsureDir(filepath.Join(dir, "pmocontrol")); err == nil {
			history = filepath.Join(dir, "pmocontrol", "history")
		}
	}
	console, rl, err := pmoconsole.NewTerminal(player, registry, history)
	if err != nil {
		log.Fatalf("❌ console: %v", err)
	}
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	log.Infof("✅ pmocontrol ready, media served from %s", server.BaseURL())
	if err := console.Run(ctx); err != nil {
		log.Errorf("❌ console: %v", err)
	}
	stop()

	log.Info("👋 Bye")
	server.Stop(context.Background())
}
