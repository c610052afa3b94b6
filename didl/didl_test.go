package didl_test

import (
	"strings"
	"testing"

	"gargoton.petite-maison-orange.fr/eric/pmocontrol/didl"
)

const trackMetaData = `<DIDL-Lite xmlns="urn:schemas-upnp-org:metadata-1-0/DIDL-Lite/" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:upnp="urn:schemas-upnp-org:metadata-1-0/upnp/">
<item id="42" parentID="7" restricted="1">
  <dc:title>So What</dc:title>
  <upnp:artist>Miles Davis</upnp:artist>
  <upnp:album>Kind of Blue</upnp:album>
  <upnp:class>object.item.audioItem.musicTrack</upnp:class>
  <res protocolInfo="http-get:*:audio/flac:*" duration="0:09:22.000">http://nas/so-what.flac</res>
</item>
</DIDL-Lite>`

func TestParseItem(t *testing.T) {
	item, err := didl.ParseItem(trackMetaData)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if item.Title != "So What" || item.Artist != "Miles Davis" || item.Album != "Kind of Blue" {
		t.Fatalf("unexpected item %+v", item)
	}

	res, ok := didl.First(item.GetPrimaryResource())
	if !ok {
		t.Fatal("no primary resource")
	}
	if res.Duration != "0:09:22.000" || res.URL != "http://nas/so-what.flac" {
		t.Fatalf("unexpected resource %+v", res)
	}
	if didl.Count(item.GetAudioResources()) != 1 {
		t.Fatal("expected one audio resource")
	}
}

func TestParseItemRejectsEmptyMetadata(t *testing.T) {
	for _, in := range []string{"", "NOT_IMPLEMENTED", "<DIDL-Lite></DIDL-Lite>"} {
		if _, err := didl.ParseItem(in); err == nil {
			t.Errorf("expected an error for %q", in)
		}
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	item := didl.NewMusicTrack("track-1", "Blue in Green & more")
	item.Artist = "Bill Evans"
	item.AlbumArt = "http://10.0.0.2:1401/covers/images/abc"
	item.AddResource("http://10.0.0.2:1401/media/x/blue.mp3", "audio/mpeg", "0:05:37")

	out, err := item.Document().Marshal()
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, want := range []string{
		`<dc:title>Blue in Green &amp; more</dc:title>`,
		`<upnp:class>object.item.audioItem.musicTrack</upnp:class>`,
		`protocolInfo="http-get:*:audio/mpeg:*"`,
		`duration="0:05:37"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s in %s", want, out)
		}
	}

	back, err := didl.ParseItem(out)
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if back.Title != item.Title || back.AlbumArt != item.AlbumArt {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestAllItemsWalksContainers(t *testing.T) {
	d := &didl.DIDLLite{
		Items: []didl.Item{{ID: "a"}},
		Containers: []didl.Container{{
			ID:    "c1",
			Items: []didl.Item{{ID: "b"}},
			Containers: []didl.Container{{
				ID:    "c2",
				Items: []didl.Item{{ID: "c"}, {ID: "d"}},
			}},
		}},
	}

	var ids []string
	for item := range d.AllItems() {
		ids = append(ids, item.ID)
	}
	if strings.Join(ids, ",") != "a,b,c,d" {
		t.Fatalf("unexpected order %v", ids)
	}

	withD := didl.Filter(d.AllItems(), func(i *didl.Item) bool { return i.ID == "d" })
	if first, ok := didl.First(withD); !ok || first.ID != "d" {
		t.Fatal("filter failed")
	}

	if didl.Count(d.AllContainers()) != 2 {
		t.Fatal("expected two containers")
	}
}

func TestToMarkdown(t *testing.T) {
	d, err := didl.Parse(trackMetaData)
	if err != nil {
		t.Fatal(err)
	}
	md := d.ToMarkdown()
	if !strings.Contains(md, "- artist: Miles Davis") || !strings.Contains(md, "Duration: `0:09:22.000`") {
		t.Fatalf("unexpected markdown:\n%s", md)
	}
}
