package idp

import (
	"fmt"
	"math"
	"strings"

	"github.com/crewjam/saml"
)

const (
	DefaultLanguage = "en"

	spCertFile   = "./saml/idp/cert/sp.crt"
	spKeyFile    = "./saml/idp/cert/sp.key"
	nameIDFormat = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
)

// BuildConfig converts one identity provider into its login configuration.
// Names and descriptions prefer lang.
func BuildConfig(e Entity, lang string) (map[string]any, error) {
	if lang == "" {
		lang = DefaultLanguage
	}
	ssoURL, err := redirectSSO(e)
	if err != nil {
		return nil, err
	}
	cert, err := signingCert(e)
	if err != nil {
		return nil, err
	}

	preferredNames := orgNames(e.Descriptor.Organization, lang)
	names := orgNames(e.Descriptor.Organization, "")
	preferredDisplay := localized(e.UI.DisplayNames, lang)
	display := localized(e.UI.DisplayNames, "")
	preferredDesc := localized(e.UI.Descriptions, lang)
	desc := localized(e.UI.Descriptions, "")

	title := first(e.EntityID, preferredNames, preferredDisplay, names, display)
	description := first(title, preferredDesc, desc, preferredDisplay, preferredNames, display, names)

	return map[string]any{
		"title":        title,
		"description":  description,
		"icon":         PickSquarestLogo(e.UI.Logos, ""),
		"sp_cert_file": spCertFile,
		"sp_key_file":  spKeyFile,
		"settings": map[string]any{
			"sp": map[string]any{
				"NameIDFormat": nameIDFormat,
			},
			"idp": map[string]any{
				"singleSignOnService": map[string]any{
					"binding": saml.HTTPRedirectBinding,
					"url":     ssoURL,
				},
				"singleLogoutService": map[string]any{},
				"x509cert":            cert,
			},
			"security": map[string]any{},
		},
		"mappings":     map[string]any{},
		"acs_handler":  fmt.Sprintf("acs_handler_factory(%q)", e.EntityID),
		"auto_confirm": true,
	}, nil
}

// BuildConfigs converts every entity, keyed by entityID.
func BuildConfigs(entities []Entity, lang string) (map[string]any, error) {
	out := make(map[string]any, len(entities))
	for _, e := range entities {
		cfg, err := BuildConfig(e, lang)
		if err != nil {
			return nil, err
		}
		out[e.EntityID] = cfg
	}
	return out, nil
}

func redirectSSO(e Entity) (string, error) {
	var urls []string
	for _, d := range e.Descriptor.IDPSSODescriptors {
		for _, ep := range d.SingleSignOnServices {
			if ep.Binding == saml.HTTPRedirectBinding {
				urls = append(urls, ep.Location)
			}
		}
	}
	if len(urls) != 1 {
		return "", fmt.Errorf("%s has %d SSO-URLs for SAML's `Redirect` binding", e.EntityID, len(urls))
	}
	return urls[0], nil
}

// signingCert returns the last certificate usable for signing. Keys
// without a use attribute serve both purposes.
func signingCert(e Entity) (string, error) {
	var certs []string
	for _, d := range e.Descriptor.IDPSSODescriptors {
		for _, kd := range d.KeyDescriptors {
			if kd.Use != "" && kd.Use != "signing" {
				continue
			}
			for _, c := range kd.KeyInfo.X509Data.X509Certificates {
				if data := strings.Join(strings.Fields(c.Data), ""); data != "" {
					certs = append(certs, data)
				}
			}
		}
	}
	if len(certs) == 0 {
		return "", fmt.Errorf("%s has no signing certificates", e.EntityID)
	}
	return certs[len(certs)-1], nil
}

// orgNames returns the organization display name, or the organization
// name when there is none. With lang set only a matching entry counts,
// without lang the first entry does.
func orgNames(org *saml.Organization, lang string) []string {
	if org == nil {
		return nil
	}
	names := org.OrganizationDisplayNames
	if len(names) == 0 {
		names = org.OrganizationNames
	}
	got := localized(names, lang)
	if lang == "" && len(got) > 1 {
		got = got[:1]
	}
	return got
}

func localized(names []saml.LocalizedName, lang string) []string {
	var out []string
	for _, n := range names {
		v := strings.TrimSpace(n.Value)
		if v == "" || (lang != "" && n.Lang != lang) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func first(fallback string, lists ...[]string) string {
	for _, l := range lists {
		if len(l) > 0 {
			return l[0]
		}
	}
	return fallback
}

// PickSquarestLogo returns the URL of the logo whose aspect ratio is
// closest to 1. Logos without dimensions are skipped.
func PickSquarestLogo(logos []Logo, fallback string) string {
	pick := fallback
	best := math.Inf(1)
	for _, l := range logos {
		if l.Width <= 0 || l.Height <= 0 {
			continue
		}
		ratio := float64(max(l.Width, l.Height)) / float64(min(l.Width, l.Height))
		if ratio < best {
			pick, best = strings.TrimSpace(l.URL), ratio
		}
	}
	return pick
}
