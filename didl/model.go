package didl

import "encoding/xml"

const (
	NSDIDL = "urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/"
	NSUPnP = "urn:schemas-upnp-org:metadata-1-0/upnp/"
	NSDC   = "http://purl.org/dc/elements/1.1/"
	NSDLNA = "urn:schemas-dlna-org:metadata-1-0/"

	ClassMusicTrack = "object.item.audioItem.musicTrack"
	ClassAudioItem  = "object.item.audioItem"
)

// DIDLLite représente la racine <DIDL-Lite>
type DIDLLite struct {
	XMLName    xml.Name    `xml:"DIDL-Lite"`
	Containers []Container `xml:"container"`
	Items      []Item      `xml:"item"`
}

// Container peut contenir d'autres containers ou des items audio
type Container struct {
	ID         string      `xml:"id,attr"`
	ParentID   string      `xml:"parentID,attr"`
	Restricted string      `xml:"restricted,attr,omitempty"`
	Title      string      `xml:"http://purl.org/dc/elements/1.1/ title"`
	Class      string      `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ class"`
	Containers []Container `xml:"container"`
	Items      []Item      `xml:"item"`
}

// Item représente un objet audio, typiquement le morceau envoyé à un
// renderer avec SetAVTransportURI.
type Item struct {
	ID         string `xml:"id,attr"`
	ParentID   string `xml:"parentID,attr"`
	Restricted string `xml:"restricted,attr,omitempty"`

	Title               string `xml:"http://purl.org/dc/elements/1.1/ title"`
	Creator             string `xml:"http://purl.org/dc/elements/1.1/ creator,omitempty"`
	Class               string `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ class"`
	Artist              string `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ artist,omitempty"`
	Album               string `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ album,omitempty"`
	Genre               string `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ genre,omitempty"`
	AlbumArt            string `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ albumArtURI,omitempty"`
	Date                string `xml:"http://purl.org/dc/elements/1.1/ date,omitempty"`
	OriginalTrackNumber string `xml:"urn:schemas-upnp-org:metadata-1-0/upnp/ originalTrackNumber,omitempty"`

	Ress []Res `xml:"res"`
}

// Res correspond aux fichiers média
type Res struct {
	ProtocolInfo    string `xml:"protocolInfo,attr"`
	Size            string `xml:"size,attr,omitempty"`
	SampleFrequency string `xml:"sampleFrequency,attr,omitempty"`
	NrAudioChannels string `xml:"nrAudioChannels,attr,omitempty"`
	Duration        string `xml:"duration,attr,omitempty"`
	URL             string `xml:",chardata"`
}
