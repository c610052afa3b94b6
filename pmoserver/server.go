// Package pmoserver est le serveur HTTP du point de contrôle : il publie
// les fichiers locaux et les pochettes vers les renderers et expose une
// page de debug.
package pmoserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/beevik/etree"
	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/netutils"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoconfig"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmocover"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmolog"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoplayer"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmorenderer"
)

// StatusSource fournit l'instantané du lecteur affiché par la page de debug.
type StatusSource interface {
	Info() pmoplayer.Info
}

type Server struct {
	name     string
	HTTPPort int
	iface    string
	baseURL  string
	autoBase bool

	Logger  *log.Logger
	mux     *http.ServeMux
	httpSrv *http.Server

	covers   *pmocover.Cache
	variant  int
	broker   *pmolog.Broker
	registry *pmorenderer.Registry
	player   StatusSource

	mu        sync.RWMutex
	media     map[string]string
	published map[string]string

	startOnce sync.Once
	stopOnce  sync.Once
}

type ServerOption func(*Server)

func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) { s.Logger = l }
}

// WithBaseURL fixe l'adresse annoncée aux renderers.
func WithBaseURL(url string) ServerOption {
	return func(s *Server) {
		s.baseURL = url
		s.autoBase = url == ""
	}
}

func WithPort(port int) ServerOption {
	return func(s *Server) { s.HTTPPort = port }
}

// WithCovers sert les pochettes du cache, déclinées en variant px.
func WithCovers(c *pmocover.Cache, variant int) ServerOption {
	return func(s *Server) {
		s.covers = c
		s.variant = variant
	}
}

// WithBroker expose les logs et les événements du lecteur en SSE.
func WithBroker(b *pmolog.Broker) ServerOption {
	return func(s *Server) { s.broker = b }
}

func WithRegistry(reg *pmorenderer.Registry) ServerOption {
	return func(s *Server) { s.registry = reg }
}

func WithPlayer(p StatusSource) ServerOption {
	return func(s *Server) { s.player = p }
}

// NewServer prépare le serveur décrit par la section host de cfg. Sans
// base_url, l'adresse est celle de l'interface configurée, complétée du
// port réel au démarrage.
func NewServer(name string, cfg *pmoconfig.Config, opts ...ServerOption) (*Server, error) {
	s := &Server{
		name:      name,
		HTTPPort:  cfg.GetHTTPPort(),
		iface:     cfg.GetInterface(),
		baseURL:   cfg.GetBaseURL(),
		Logger:    log.StandardLogger(),
		variant:   cfg.GetCoverVariantSize(),
		media:     make(map[string]string),
		published: make(map[string]string),
	}
	s.autoBase = s.baseURL == ""

	for _, opt := range opts {
		opt(s)
	}

	if s.autoBase {
		ip, err := netutils.LocalIP(s.iface)
		if err != nil {
			return nil, fmt.Errorf("unable to determine local IP: %w", err)
		}
		s.baseURL = fmt.Sprintf("http://%s:%d", ip, s.HTTPPort)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/", s.ServeDebugIndex)
	s.mux.HandleFunc("/media/", s.serveMedia)
	s.mux.HandleFunc("/debug/renderers.xml", s.ServeXML(s.renderersXML))
	if s.covers != nil {
		s.covers.ServeMux(s.mux)
	}
	if s.broker != nil {
		pmolog.LoggerWeb(s.mux, s.broker)
	}

	return s, nil
}

// SetPlayer branche le lecteur après coup : il dépend lui-même du serveur
// pour publier ses médias.
func (s *Server) SetPlayer(p StatusSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = p
}

func (s *Server) Name() string { return s.name }

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// Start ouvre le port puis sert en tâche de fond.
func (s *Server) Start() error {
	var err error
	s.startOnce.Do(func() {
		var ln net.Listener
		ln, err = net.Listen("tcp", fmt.Sprintf(":%d", s.HTTPPort))
		if err != nil {
			return
		}

		port := ln.Addr().(*net.TCPAddr).Port
		s.mu.Lock()
		s.HTTPPort = port
		if s.autoBase {
			host, _, _ := net.SplitHostPort(s.baseURL[len("http://"):])
			s.baseURL = "http://" + net.JoinHostPort(host, strconv.Itoa(port))
		}
		s.mu.Unlock()

		s.httpSrv = &http.Server{
			Handler:           s.mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Errorf("❌ server error: %v", err)
			}
		}()

		log.Infof("✅ HTTP server started on %s", s.BaseURL())
	})
	return err
}

func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		if s.httpSrv != nil {
			s.Logger.Info("✅ Shutting down HTTP server...")
			err = s.httpSrv.Shutdown(ctx)
		}
	})
	return err
}

func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// XML sérialise l'élément produit par gen avec l'en-tête XML.
func (s *Server) XML(gen func() *etree.Element) (string, error) {
	doc := etree.NewDocument()
	doc.SetRoot(gen())
	doc.Indent(2)

	buf := new(bytes.Buffer)
	if _, err := doc.WriteTo(buf); err != nil {
		return "", err
	}
	return `<?xml version="1.0" encoding="utf-8"?>` + "\n" + buf.String(), nil
}

func (s *Server) ServeXML(gen func() *etree.Element) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		xmlStr, err := s.XML(gen)
		if err != nil {
			http.Error(w, "failed to generate XML", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(xmlStr))
	}
}
