package soap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Fault est une erreur SOAP retournée par un device. UPnPErrorCode vaut 0
// quand le detail ne contient pas de UPnPError.
type Fault struct {
	Code                 string
	String               string
	UPnPErrorCode        int
	UPnPErrorDescription string
}

func (f *Fault) Error() string {
	if f.UPnPErrorCode != 0 {
		return fmt.Sprintf("SOAP fault %s: UPnPError %d (%s)", f.Code, f.UPnPErrorCode, f.UPnPErrorDescription)
	}
	return fmt.Sprintf("SOAP fault %s: %s", f.Code, f.String)
}

func faultFrom(e *etree.Element) *Fault {
	f := &Fault{}
	if c := e.SelectElement("faultcode"); c != nil {
		f.Code = strings.TrimSpace(c.Text())
	}
	if s := e.SelectElement("faultstring"); s != nil {
		f.String = strings.TrimSpace(s.Text())
	}
	if ue := e.FindElement("detail/UPnPError"); ue != nil {
		if c := ue.SelectElement("errorCode"); c != nil {
			f.UPnPErrorCode, _ = strconv.Atoi(strings.TrimSpace(c.Text()))
		}
		if d := ue.SelectElement("errorDescription"); d != nil {
			f.UPnPErrorDescription = strings.TrimSpace(d.Text())
		}
	}
	return f
}
