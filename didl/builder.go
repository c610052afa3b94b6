package didl

import (
	"fmt"

	"github.com/beevik/etree"
)

// NewMusicTrack prépare un item object.item.audioItem.musicTrack.
func NewMusicTrack(id, title string) *Item {
	if id == "" {
		id = "0"
	}
	return &Item{
		ID:         id,
		ParentID:   "-1",
		Restricted: "1",
		Title:      title,
		Class:      ClassMusicTrack,
	}
}

// AddResource ajoute une ressource http-get. duration est au format UPnP
// H:MM:SS, vide si inconnue.
func (i *Item) AddResource(url, mime, duration string) *Item {
	if mime == "" {
		mime = "*"
	}
	i.Ress = append(i.Ress, Res{
		ProtocolInfo: fmt.Sprintf("http-get:*:%s:*", mime),
		Duration:     duration,
		URL:          url,
	})
	return i
}

// Document enveloppe un item seul dans un DIDL-Lite.
func (i *Item) Document() *DIDLLite {
	return &DIDLLite{Items: []Item{*i}}
}

// Marshal sérialise le document avec les préfixes dc:, upnp: attendus par
// la plupart des renderers, sans déclaration XML.
func (d *DIDLLite) Marshal() (string, error) {
	doc := etree.NewDocument()
	root := doc.CreateElement("DIDL-Lite")
	root.CreateAttr("xmlns", NSDIDL)
	root.CreateAttr("xmlns:dc", NSDC)
	root.CreateAttr("xmlns:upnp", NSUPnP)
	root.CreateAttr("xmlns:dlna", NSDLNA)

	for _, c := range d.Containers {
		writeContainer(root, &c)
	}
	for _, i := range d.Items {
		writeItem(root, &i)
	}

	return doc.WriteToString()
}

// String retourne le document sérialisé, ou "" en cas d'échec.
func (d *DIDLLite) String() string {
	s, err := d.Marshal()
	if err != nil {
		return ""
	}
	return s
}

func writeContainer(parent *etree.Element, c *Container) {
	e := parent.CreateElement("container")
	e.CreateAttr("id", c.ID)
	e.CreateAttr("parentID", c.ParentID)
	if c.Restricted != "" {
		e.CreateAttr("restricted", c.Restricted)
	}
	textElement(e, "dc:title", c.Title)
	textElement(e, "upnp:class", c.Class)
	for _, sub := range c.Containers {
		writeContainer(e, &sub)
	}
	for _, i := range c.Items {
		writeItem(e, &i)
	}
}

func writeItem(parent *etree.Element, i *Item) {
	e := parent.CreateElement("item")
	e.CreateAttr("id", i.ID)
	e.CreateAttr("parentID", i.ParentID)
	if i.Restricted != "" {
		e.CreateAttr("restricted", i.Restricted)
	}

	e.CreateElement("dc:title").SetText(i.Title)
	textElement(e, "dc:creator", i.Creator)
	textElement(e, "upnp:artist", i.Artist)
	textElement(e, "upnp:album", i.Album)
	textElement(e, "upnp:genre", i.Genre)
	textElement(e, "upnp:albumArtURI", i.AlbumArt)
	textElement(e, "dc:date", i.Date)
	textElement(e, "upnp:originalTrackNumber", i.OriginalTrackNumber)
	e.CreateElement("upnp:class").SetText(i.Class)

	for _, r := range i.Ress {
		res := e.CreateElement("res")
		res.CreateAttr("protocolInfo", r.ProtocolInfo)
		if r.Size != "" {
			res.CreateAttr("size", r.Size)
		}
		if r.Duration != "" {
			res.CreateAttr("duration", r.Duration)
		}
		if r.SampleFrequency != "" {
			res.CreateAttr("sampleFrequency", r.SampleFrequency)
		}
		if r.NrAudioChannels != "" {
			res.CreateAttr("nrAudioChannels", r.NrAudioChannels)
		}
		res.SetText(r.URL)
	}
}

func textElement(parent *etree.Element, tag, value string) {
	if value != "" {
		parent.CreateElement(tag).SetText(value)
	}
}
