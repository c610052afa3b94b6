package pmoupnp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/soap"
	log "github.com/sirupsen/logrus"
)

// Result est l'issue d'une action : les arguments de sortie, ou une erreur.
type Result struct {
	Values map[string]string
	Err    error
}

// Invoker lance une action UPnP de manière asynchrone. done est appelé
// exactement une fois, depuis une goroutine quelconque.
type Invoker interface {
	Invoke(ctx context.Context, svc *Service, req *soap.ActionRequest, done func(Result))
}

// InvokerFunc adapte une fonction synchrone en Invoker.
type InvokerFunc func(ctx context.Context, svc *Service, req *soap.ActionRequest) Result

func (f InvokerFunc) Invoke(ctx context.Context, svc *Service, req *soap.ActionRequest, done func(Result)) {
	go func() {
		done(f(ctx, svc, req))
	}()
}

// HTTPInvoker envoie les actions en SOAP 1.1 sur HTTP.
type HTTPInvoker struct {
	client    *http.Client
	userAgent string
}

func NewHTTPInvoker(client *http.Client) *HTTPInvoker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPInvoker{
		client:    client,
		userAgent: fmt.Sprintf("%s/%s UPnP/1.1 PMOControl/1.0", runtime.GOOS, runtime.GOARCH),
	}
}

func (inv *HTTPInvoker) Invoke(ctx context.Context, svc *Service, req *soap.ActionRequest, done func(Result)) {
	go func() {
		done(inv.Call(ctx, svc, req))
	}()
}

// Call exécute l'action de manière synchrone.
func (inv *HTTPInvoker) Call(ctx context.Context, svc *Service, req *soap.ActionRequest) Result {
	if svc == nil || svc.ControlURL() == "" {
		return Result{Err: errors.New("service has no control URL")}
	}
	if req.ServiceType == "" {
		req.ServiceType = svc.ServiceType()
	}

	body, err := req.Build()
	if err != nil {
		return Result{Err: err}
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("%s\n\n- **to**: %s", req.ToMarkdown(), svc.ControlURL())
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.ControlURL(), bytes.NewReader(body))
	if err != nil {
		return Result{Err: err}
	}
	hreq.Header.Set("Content-Type", `text/xml; charset="utf-8"`)
	// certains renderers exigent la casse exacte
	hreq.Header["SOAPACTION"] = []string{req.SOAPAction()}
	hreq.Header.Set("User-Agent", inv.userAgent)

	resp, err := inv.client.Do(hreq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDescriptionSize))
	if err != nil {
		return Result{Err: err}
	}

	values, err := soap.ParseActionResponse(data, req.Name)
	if err != nil {
		var fault *soap.Fault
		if !errors.As(err, &fault) && resp.StatusCode != http.StatusOK {
			err = fmt.Errorf("HTTP %d: %w", resp.StatusCode, err)
		}
		return Result{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return Result{Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debug(soap.ResponseToMarkdown(req.Name, values))
	}
	return Result{Values: values}
}
