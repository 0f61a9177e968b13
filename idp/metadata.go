// Package idp turns SAML federation metadata into the IdP configuration
// the host's SAML login expects, and keeps that configuration fresh.
package idp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/crewjam/saml"
)

const mduiNamespace = "urn:oasis:names:tc:SAML:metadata:ui"

var ErrNoIdentityProviders = errors.New("metadata contains no identity providers")

// Logo is an mdui:Logo entry.
type Logo struct {
	URL    string `xml:",chardata"`
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
}

// UIInfo carries the mdui:UIInfo extension of an IdP descriptor.
type UIInfo struct {
	DisplayNames []saml.LocalizedName `xml:"urn:oasis:names:tc:SAML:metadata:ui DisplayName"`
	Descriptions []saml.LocalizedName `xml:"urn:oasis:names:tc:SAML:metadata:ui Description"`
	Logos        []Logo               `xml:"urn:oasis:names:tc:SAML:metadata:ui Logo"`
}

func (u *UIInfo) merge(o UIInfo) {
	u.DisplayNames = append(u.DisplayNames, o.DisplayNames...)
	u.Descriptions = append(u.Descriptions, o.Descriptions...)
	u.Logos = append(u.Logos, o.Logos...)
}

// Entity is one identity provider found in the metadata.
type Entity struct {
	EntityID   string
	Descriptor saml.EntityDescriptor
	UI         UIInfo
}

// ParseMetadata reads an EntityDescriptor or an EntitiesDescriptor
// document and returns its identity providers in document order.
func ParseMetadata(data []byte) ([]Entity, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}
	var descriptors []saml.EntityDescriptor
	switch root {
	case "EntitiesDescriptor":
		var doc saml.EntitiesDescriptor
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse entities descriptor: %w", err)
		}
		descriptors = flatten(doc)
	case "EntityDescriptor":
		var doc saml.EntityDescriptor
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse entity descriptor: %w", err)
		}
		descriptors = []saml.EntityDescriptor{doc}
	default:
		return nil, fmt.Errorf("unexpected metadata root element %q", root)
	}

	ui, err := parseUIInfo(data)
	if err != nil {
		return nil, err
	}
	var out []Entity
	for _, d := range descriptors {
		if len(d.IDPSSODescriptors) == 0 {
			continue
		}
		out = append(out, Entity{EntityID: d.EntityID, Descriptor: d, UI: ui[d.EntityID]})
	}
	if len(out) == 0 {
		return nil, ErrNoIdentityProviders
	}
	return out, nil
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return "", errors.New("empty metadata document")
		}
		if err != nil {
			return "", fmt.Errorf("read metadata: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func flatten(doc saml.EntitiesDescriptor) []saml.EntityDescriptor {
	out := append([]saml.EntityDescriptor(nil), doc.EntityDescriptors...)
	for _, nested := range doc.EntitiesDescriptors {
		out = append(out, flatten(nested)...)
	}
	return out
}

// parseUIInfo collects the mdui:UIInfo of every IDPSSODescriptor keyed by
// entityID. The metadata types do not model descriptor extensions.
func parseUIInfo(data []byte) (map[string]UIInfo, error) {
	out := make(map[string]UIInfo)
	dec := xml.NewDecoder(bytes.NewReader(data))
	var entityID string
	inIDP := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read mdui extensions: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "EntityDescriptor":
				entityID = attr(t, "entityID")
			case t.Name.Local == "IDPSSODescriptor":
				inIDP = true
			case t.Name.Local == "UIInfo" && t.Name.Space == mduiNamespace && inIDP:
				var info UIInfo
				if err := dec.DecodeElement(&info, &t); err != nil {
					return nil, fmt.Errorf("decode mdui of %s: %w", entityID, err)
				}
				cur := out[entityID]
				cur.merge(info)
				out[entityID] = cur
			}
		case xml.EndElement:
			if t.Name.Local == "IDPSSODescriptor" {
				inIDP = false
			}
		}
	}
}

func attr(se xml.StartElement, local string) string {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
