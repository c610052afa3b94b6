// Package upnptest fournit un MediaRenderer UPnP minimal servi par
// httptest, pour tester le control point sans matériel.
package upnptest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/pmoupnp"
	"gargoton.petite-maison-orange.fr/eric/pmocontrol/soap"
)

// Renderer simule un MediaRenderer : description, SCPD et contrôle SOAP de
// AVTransport et RenderingControl.
type Renderer struct {
	name     string
	udn      string
	canPause bool

	mu       sync.Mutex
	calls    []*soap.ActionRequest
	failures map[string]int

	state         pmoupnp.TransportState
	uri           string
	metadata      string
	relTime       string
	absTime       string
	trackDuration string
	trackMetaData string
	volume        int
	muted         bool

	srv *httptest.Server
}

type Option func(*Renderer)

// WithoutPause retire l'action Pause de la SCPD AVTransport.
func WithoutPause() Option {
	return func(r *Renderer) { r.canPause = false }
}

func WithUDN(udn string) Option {
	return func(r *Renderer) { r.udn = udn }
}

// NewRenderer démarre un renderer. Le fermer avec Close.
func NewRenderer(name string, opts ...Option) *Renderer {
	r := &Renderer{
		name:          name,
		udn:           uuid.NewString(),
		canPause:      true,
		failures:      make(map[string]int),
		state:         pmoupnp.StateNoMediaPresent,
		relTime:       "0:00:00",
		absTime:       pmoupnp.NotImplemented,
		trackDuration: "0:00:00",
		volume:        30,
	}
	for _, opt := range opts {
		opt(r)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/desc.xml", serveXML(r.deviceElement))
	mux.HandleFunc("/avt/scpd.xml", serveXML(r.avtSCPD))
	mux.HandleFunc("/rc/scpd.xml", serveXML(rcSCPD))
	mux.HandleFunc("/avt/control", r.controlHandler(pmoupnp.ServiceAVTransport))
	mux.HandleFunc("/rc/control", r.controlHandler(pmoupnp.ServiceRenderingControl))
	r.srv = httptest.NewServer(mux)

	return r
}

func (r *Renderer) Close() {
	r.srv.Close()
}

func (r *Renderer) UDN() string {
	return r.udn
}

// Location est l'URL de la description.
func (r *Renderer) Location() string {
	return r.srv.URL + "/desc.xml"
}

// Device construit le device tel qu'un control point le verrait, sans passer
// par HTTP.
func (r *Renderer) Device() *pmoupnp.Device {
	dev := pmoupnp.NewDevice(r.udn, pmoupnp.DeviceMediaRenderer, r.name)
	dev.SetLocation(r.Location())

	avt := pmoupnp.NewService(pmoupnp.ServiceAVTransport, "urn:upnp-org:serviceId:AVTransport", r.srv.URL+"/avt/control")
	for _, a := range r.avtActions() {
		avt.AddAction(a)
	}
	rc := pmoupnp.NewService(pmoupnp.ServiceRenderingControl, "urn:upnp-org:serviceId:RenderingControl", r.srv.URL+"/rc/control")
	for _, a := range rcActions {
		rc.AddAction(a)
	}
	return dev.AddService(avt).AddService(rc)
}

// FailNext fait échouer les n prochains appels à action.
func (r *Renderer) FailNext(action string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[action] = n
}

// Calls retourne les noms des actions reçues, dans l'ordre.
func (r *Renderer) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.calls))
	for i, c := range r.calls {
		names[i] = c.Name
	}
	return names
}

// LastCall retourne le dernier appel à action, ou nil.
func (r *Renderer) LastCall(action string) *soap.ActionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].Name == action {
			return r.calls[i]
		}
	}
	return nil
}

// SetPosition fixe les champs renvoyés par GetPositionInfo.
func (r *Renderer) SetPosition(rel, abs, duration string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.relTime, r.absTime, r.trackDuration = rel, abs, duration
}

func (r *Renderer) SetTrackMetaData(meta string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trackMetaData = meta
}

func (r *Renderer) State() pmoupnp.TransportState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Renderer) URI() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uri
}

func (r *Renderer) Volume() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume, r.muted
}

// ---------- Descriptions ----------

var avtBaseActions = []string{
	"SetAVTransportURI", "Play", "Stop", "Seek",
	"GetTransportInfo", "GetPositionInfo", "GetMediaInfo",
}

var rcActions = []string{"GetVolume", "SetVolume", "GetMute", "SetMute"}

func (r *Renderer) avtActions() []string {
	actions := append([]string{}, avtBaseActions...)
	if r.canPause {
		actions = append(actions, "Pause")
	}
	return actions
}

func serveXML(build func() *etree.Element) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
		doc.SetRoot(build())
		w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
		if _, err := doc.WriteTo(w); err != nil {
			log.Errorf("❌ Cannot write XML: %v", err)
		}
	}
}

func (r *Renderer) deviceElement() *etree.Element {
	elem := etree.NewElement("root")
	elem.CreateAttr("xmlns", "urn:schemas-upnp-org:device-1-0")

	spec := elem.CreateElement("specVersion")
	spec.CreateElement("major").SetText("1")
	spec.CreateElement("minor").SetText("0")

	device := elem.CreateElement("device")
	device.CreateElement("deviceType").SetText(pmoupnp.DeviceMediaRenderer)
	device.CreateElement("friendlyName").SetText(r.name)
	device.CreateElement("manufacturer").SetText("PMO")
	device.CreateElement("modelName").SetText("FakeRenderer")
	device.CreateElement("UDN").SetText("uuid:" + r.udn)

	list := device.CreateElement("serviceList")
	addService := func(serviceType, id, prefix string) {
		s := list.CreateElement("service")
		s.CreateElement("serviceType").SetText(serviceType)
		s.CreateElement("serviceId").SetText(id)
		// URLs relatives, résolues par le control point
		s.CreateElement("SCPDURL").SetText(prefix + "/scpd.xml")
		s.CreateElement("controlURL").SetText(prefix + "/control")
		s.CreateElement("eventSubURL").SetText(prefix + "/event")
	}
	addService(pmoupnp.ServiceAVTransport, "urn:upnp-org:serviceId:AVTransport", "/avt")
	addService(pmoupnp.ServiceRenderingControl, "urn:upnp-org:serviceId:RenderingControl", "avt/../rc")

	return elem
}

func scpdElement(actions []string) *etree.Element {
	elem := etree.NewElement("scpd")
	elem.CreateAttr("xmlns", "urn:schemas-upnp-org:service-1-0")

	spec := elem.CreateElement("specVersion")
	spec.CreateElement("major").SetText("1")
	spec.CreateElement("minor").SetText("0")

	list := elem.CreateElement("actionList")
	for _, name := range actions {
		a := list.CreateElement("action")
		a.CreateElement("name").SetText(name)
		arg := a.CreateElement("argumentList").CreateElement("argument")
		arg.CreateElement("name").SetText("InstanceID")
		arg.CreateElement("direction").SetText("in")
		arg.CreateElement("relatedStateVariable").SetText("A_ARG_TYPE_InstanceID")
	}
	return elem
}

func (r *Renderer) avtSCPD() *etree.Element {
	return scpdElement(r.avtActions())
}

func rcSCPD() *etree.Element {
	return scpdElement(rcActions)
}

// ---------- Contrôle ----------

func (r *Renderer) controlHandler(serviceType string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		action, err := soap.ParseActionRequest(body)
		if err != nil {
			writeFault(w, 402, "Invalid Args")
			return
		}

		values, code := r.apply(action)
		if code != 0 {
			writeFault(w, code, "Action Failed")
			return
		}

		resp, _ := soap.BuildUPnPResponse(serviceType, action.Name, values)
		w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(resp)
	}
}

func writeFault(w http.ResponseWriter, code int, desc string) {
	resp, _ := soap.BuildSOAPFault("s:Client", "UPnPError", code, desc)
	w.Header().Set("Content-Type", `text/xml; charset="utf-8"`)
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(resp)
}

// apply exécute l'action sur l'état simulé. Un code non nul est une
// UPnPError.
func (r *Renderer) apply(action *soap.ActionRequest) ([]soap.Argument, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, action)

	if n := r.failures[action.Name]; n > 0 {
		r.failures[action.Name] = n - 1
		return nil, 501
	}

	arg := func(name string) string {
		v, _ := action.Get(name)
		return v
	}

	switch action.Name {
	case "SetAVTransportURI":
		r.uri = arg("CurrentURI")
		r.metadata = arg("CurrentURIMetaData")
		r.state = pmoupnp.StateStopped
	case "Play":
		if r.uri == "" {
			return nil, 701
		}
		r.state = pmoupnp.StatePlaying
	case "Pause":
		if !r.canPause {
			return nil, 401
		}
		r.state = pmoupnp.StatePausedPlayback
	case "Stop":
		if r.uri != "" {
			r.state = pmoupnp.StateStopped
		}
	case "Seek":
		r.relTime = arg("Target")
	case "GetTransportInfo":
		return []soap.Argument{
			{Name: "CurrentTransportState", Value: string(r.state)},
			{Name: "CurrentTransportStatus", Value: "OK"},
			{Name: "CurrentSpeed", Value: "1"},
		}, 0
	case "GetPositionInfo":
		return []soap.Argument{
			{Name: "Track", Value: "1"},
			{Name: "TrackDuration", Value: r.trackDuration},
			{Name: "TrackMetaData", Value: r.trackMetaData},
			{Name: "TrackURI", Value: r.uri},
			{Name: "RelTime", Value: r.relTime},
			{Name: "AbsTime", Value: r.absTime},
			{Name: "RelCount", Value: "2147483647"},
			{Name: "AbsCount", Value: "2147483647"},
		}, 0
	case "GetMediaInfo":
		return []soap.Argument{
			{Name: "CurrentURI", Value: r.uri},
			{Name: "CurrentURIMetaData", Value: r.metadata},
		}, 0
	case "GetVolume":
		return []soap.Argument{{Name: "CurrentVolume", Value: strconv.Itoa(r.volume)}}, 0
	case "SetVolume":
		v, err := strconv.Atoi(arg("DesiredVolume"))
		if err != nil {
			return nil, 402
		}
		r.volume = v
	case "GetMute":
		return []soap.Argument{{Name: "CurrentMute", Value: fmt.Sprint(boolInt(r.muted))}}, 0
	case "SetMute":
		r.muted = arg("DesiredMute") == "1"
	default:
		return nil, 401
	}
	return nil, 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
