// Package kml writes church locations as a KML document that map tools
// (Google My Maps, Google Earth) can import.
package kml

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Placemark is one point on the map.
type Placemark struct {
	ID     string
	Name   string
	Kind   string
	UF     string
	Region string
	Pastor string
	Lat    float64
	Lng    float64
}

type document struct {
	XMLName xml.Name `xml:"kml"`
	NS      string   `xml:"xmlns,attr"`
	Doc     struct {
		Name       string      `xml:"name"`
		Placemarks []placemark `xml:"Placemark"`
	} `xml:"Document"`
}

type placemark struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Data        []data `xml:"ExtendedData>Data"`
	Coordinates string `xml:"Point>coordinates"`
}

type data struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value"`
}

// Write encodes pms as a KML document named title.
func Write(w io.Writer, title string, pms []Placemark) error {
	var doc document
	doc.NS = "http://www.opengis.net/kml/2.2"
	doc.Doc.Name = title
	doc.Doc.Placemarks = make([]placemark, 0, len(pms))
	for _, p := range pms {
		doc.Doc.Placemarks = append(doc.Doc.Placemarks, placemark{
			Name:        p.Name,
			Description: describe(p),
			Data: []data{
				{"id", p.ID},
				{"tipo", p.Kind},
				{"uf", p.UF},
				{"regiao", p.Region},
				{"pastor", p.Pastor},
			},
			Coordinates: coords(p.Lng, p.Lat),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("kml: %w", err)
	}
	return enc.Flush()
}

func describe(p Placemark) string {
	lines := []string{
		"ID: " + p.ID,
		"Tipo: " + strings.ToUpper(p.Kind),
		"UF: " + p.UF,
		"Região: " + p.Region,
	}
	if p.Pastor != "" {
		lines = append(lines, "Pastor: "+p.Pastor)
	}
	return strings.Join(lines, "\n")
}

// coords renders "lng,lat,0", the KML coordinate order.
func coords(lng, lat float64) string {
	return strconv.FormatFloat(lng, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64) + ",0"
}
