// Package modelheader reads the md:FullModel header of CGMES RDF/XML instance files.
package modelheader

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jgivc/boundaryimporter/internal/common"
	"golang.org/x/net/html/charset"
)

const (
	fullModelElement = "FullModel"

	NamespaceRDF = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceMD  = "http://iec.ch/TC57/61970-552/ModelDescription/1#"
)

type resourceRef struct {
	Resource string `xml:"resource,attr"`
}

// FullModel is the model description header. ID is the rdf:about value and identifies the
// model globally.
type FullModel struct {
	ID                   string
	ScenarioTime         string
	Created              string
	Description          string
	Version              string
	ModelingAuthoritySet string
	Profiles             []string
	DependentOn          []string
	Supersedes           []string
}

type fullModelXML struct {
	About                string        `xml:"about,attr"`
	ScenarioTime         string        `xml:"Model.scenarioTime"`
	Created              string        `xml:"Model.created"`
	Description          string        `xml:"Model.description"`
	Version              string        `xml:"Model.version"`
	ModelingAuthoritySet string        `xml:"Model.modelingAuthoritySet"`
	Profiles             []string      `xml:"Model.profile"`
	DependentOn          []resourceRef `xml:"Model.DependentOn"`
	Supersedes           []resourceRef `xml:"Model.Supersedes"`
}

// Parse decodes the document up to the end of its md:FullModel element only.
func Parse(data []byte) (*FullModel, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: no %s element", common.ErrMalformedHeader, fullModelElement)
			}

			return nil, fmt.Errorf("%w: %w", common.ErrMalformedHeader, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != fullModelElement {
			continue
		}

		var raw fullModelXML
		if err := dec.DecodeElement(&raw, &start); err != nil {
			return nil, fmt.Errorf("%w: cannot decode %s: %w", common.ErrMalformedHeader, fullModelElement, err)
		}

		fm := raw.toModel()
		if fm.ID == "" {
			return nil, fmt.Errorf("%w: %s has no rdf:about", common.ErrMalformedHeader, fullModelElement)
		}

		return fm, nil
	}
}

// ExtractID returns the model identifier of a CGMES instance file.
func ExtractID(data []byte) (string, error) {
	fm, err := Parse(data)
	if err != nil {
		return "", err
	}

	return fm.ID, nil
}

func (r *fullModelXML) toModel() *FullModel {
	fm := &FullModel{
		ID:                   strings.TrimSpace(r.About),
		ScenarioTime:         strings.TrimSpace(r.ScenarioTime),
		Created:              strings.TrimSpace(r.Created),
		Description:          strings.TrimSpace(r.Description),
		Version:              strings.TrimSpace(r.Version),
		ModelingAuthoritySet: strings.TrimSpace(r.ModelingAuthoritySet),
	}

	for _, p := range r.Profiles {
		fm.Profiles = append(fm.Profiles, strings.TrimSpace(p))
	}

	for _, d := range r.DependentOn {
		fm.DependentOn = append(fm.DependentOn, d.Resource)
	}

	for _, s := range r.Supersedes {
		fm.Supersedes = append(fm.Supersedes, s.Resource)
	}

	return fm
}
