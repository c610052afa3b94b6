package soap

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

const (
	EnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"
	EncodingNS = "http://schemas.xmlsoap.org/soap/encoding/"
)

// Argument est un argument nommé d'une action UPnP. L'ordre des arguments
// compte pour certains renderers, d'où une liste et non une map.
type Argument struct {
	Name  string
	Value string
}

// ActionRequest décrit l'appel d'une action sur un service UPnP.
type ActionRequest struct {
	Name        string
	ServiceType string
	Args        []Argument
}

// NewAction prépare l'action name du service serviceType.
func NewAction(serviceType, name string) *ActionRequest {
	return &ActionRequest{Name: name, ServiceType: serviceType}
}

// Set ajoute ou remplace un argument.
func (ar *ActionRequest) Set(name, value string) *ActionRequest {
	for i := range ar.Args {
		if ar.Args[i].Name == name {
			ar.Args[i].Value = value
			return ar
		}
	}
	ar.Args = append(ar.Args, Argument{Name: name, Value: value})
	return ar
}

// Get retourne la valeur d'un argument.
func (ar *ActionRequest) Get(name string) (string, bool) {
	for _, a := range ar.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// SOAPAction retourne la valeur de l'entête HTTP SOAPACTION, guillemets
// compris.
func (ar *ActionRequest) SOAPAction() string {
	return fmt.Sprintf(`"%s#%s"`, ar.ServiceType, ar.Name)
}

// Build sérialise la requête dans une enveloppe SOAP 1.1.
func (ar *ActionRequest) Build() ([]byte, error) {
	return marshalSOAP(func(body *etree.Element) {
		writeAction(body, ar.ServiceType, ar.Name, ar.Args)
	})
}

// ----- Générateurs côté device (utilisés par les renderers de test) -----

// BuildUPnPResponse construit une réponse SOAP avec <ActionNameResponse>
func BuildUPnPResponse(serviceURN, action string, values []Argument) ([]byte, error) {
	return marshalSOAP(func(body *etree.Element) {
		writeAction(body, serviceURN, action+"Response", values)
	})
}

// BuildSOAPFault construit un Fault SOAP portant une UPnPError.
func BuildSOAPFault(code, description string, upnpCode int, upnpDescription string) ([]byte, error) {
	return marshalSOAP(func(body *etree.Element) {
		fault := body.CreateElement("s:Fault")
		fault.CreateElement("faultcode").SetText(code)
		fault.CreateElement("faultstring").SetText(description)
		upnpErr := fault.CreateElement("detail").CreateElement("UPnPError")
		upnpErr.CreateAttr("xmlns", "urn:schemas-upnp-org:control-1-0")
		upnpErr.CreateElement("errorCode").SetText(fmt.Sprint(upnpCode))
		upnpErr.CreateElement("errorDescription").SetText(upnpDescription)
	})
}

// ----- Internes -----

func writeAction(body *etree.Element, serviceURN, tag string, args []Argument) {
	action := body.CreateElement("u:" + tag)
	action.CreateAttr("xmlns:u", serviceURN)
	for _, a := range args {
		action.CreateElement(a.Name).SetText(a.Value)
	}
}

func marshalSOAP(fill func(body *etree.Element)) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	env := doc.CreateElement("s:Envelope")
	env.CreateAttr("xmlns:s", EnvelopeNS)
	env.CreateAttr("s:encodingStyle", EncodingNS)
	fill(env.CreateElement("s:Body"))

	return doc.WriteToBytes()
}

// bodyOf lit une enveloppe et retourne le premier élément de son Body.
func bodyOf(data []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("invalid SOAP envelope: %w", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil, fmt.Errorf("invalid SOAP envelope: missing Envelope")
	}
	body := root.SelectElement("Body")
	if body == nil {
		return nil, fmt.Errorf("invalid SOAP envelope: missing Body")
	}
	children := body.ChildElements()
	if len(children) == 0 {
		return nil, fmt.Errorf("invalid SOAP envelope: empty Body")
	}
	return children[0], nil
}

func argumentsOf(e *etree.Element) []Argument {
	var args []Argument
	for _, c := range e.ChildElements() {
		args = append(args, Argument{Name: c.Tag, Value: c.Text()})
	}
	return args
}

// ParseActionRequest décode une requête d'action (côté device).
func ParseActionRequest(data []byte) (*ActionRequest, error) {
	action, err := bodyOf(data)
	if err != nil {
		return nil, err
	}
	return &ActionRequest{
		Name:        action.Tag,
		ServiceType: action.NamespaceURI(),
		Args:        argumentsOf(action),
	}, nil
}

// ParseActionResponse décode la réponse à action. Un Fault est rendu sous
// forme d'erreur *Fault.
func ParseActionResponse(data []byte, action string) (map[string]string, error) {
	first, err := bodyOf(data)
	if err != nil {
		return nil, err
	}

	if first.Tag == "Fault" {
		return nil, faultFrom(first)
	}

	if !strings.EqualFold(first.Tag, action+"Response") {
		return nil, fmt.Errorf("unexpected SOAP response %s for action %s", first.Tag, action)
	}

	values := make(map[string]string)
	for _, a := range argumentsOf(first) {
		values[a.Name] = a.Value
	}
	return values, nil
}
