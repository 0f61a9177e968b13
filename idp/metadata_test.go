package idp

import (
	"os"
	"testing"

	"github.com/crewjam/saml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	tugrazIdP  = "https://idp.tugraz.at/idp/shibboleth"
	exampleIdP = "https://idp.example.org/idp"
)

func loadFederation(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("testdata/federation.xml")
	require.NoError(t, err)
	return data
}

func TestParseMetadataSkipsServiceProviders(t *testing.T) {
	entities, err := ParseMetadata(loadFederation(t))
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, tugrazIdP, entities[0].EntityID)
	assert.Equal(t, exampleIdP, entities[1].EntityID)

	ui := entities[0].UI
	assert.Len(t, ui.DisplayNames, 2)
	assert.Len(t, ui.Descriptions, 2)
	assert.Len(t, ui.Logos, 2)
	assert.Empty(t, entities[1].UI.DisplayNames)
}

func TestParseMetadataSingleEntity(t *testing.T) {
	doc := `<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://single.example.org/idp">
  <md:IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location="https://single.example.org/sso"/>
  </md:IDPSSODescriptor>
</md:EntityDescriptor>`
	entities, err := ParseMetadata([]byte(doc))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "https://single.example.org/idp", entities[0].EntityID)
}

func TestParseMetadataErrors(t *testing.T) {
	_, err := ParseMetadata([]byte(""))
	assert.Error(t, err)

	_, err = ParseMetadata([]byte(`<html><body>not metadata</body></html>`))
	assert.ErrorContains(t, err, "unexpected metadata root element")

	spOnly := `<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata" entityID="https://sp.example.org">
  <md:SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol"/>
</md:EntityDescriptor>`
	_, err = ParseMetadata([]byte(spOnly))
	assert.ErrorIs(t, err, ErrNoIdentityProviders)
}

func TestBuildConfigPrefersOrganizationAndMDUI(t *testing.T) {
	entities, err := ParseMetadata(loadFederation(t))
	require.NoError(t, err)

	cfg, err := BuildConfig(entities[0], "en")
	require.NoError(t, err)

	assert.Equal(t, "TU Graz", cfg["title"])
	assert.Equal(t, "Login for members of TU Graz", cfg["description"])
	assert.Equal(t, "https://idp.tugraz.at/square.png", cfg["icon"])
	assert.Equal(t, "./saml/idp/cert/sp.crt", cfg["sp_cert_file"])
	assert.Equal(t, "./saml/idp/cert/sp.key", cfg["sp_key_file"])
	assert.Equal(t, `acs_handler_factory("https://idp.tugraz.at/idp/shibboleth")`, cfg["acs_handler"])
	assert.Equal(t, true, cfg["auto_confirm"])

	settings := cfg["settings"].(map[string]any)
	idpSettings := settings["idp"].(map[string]any)
	sso := idpSettings["singleSignOnService"].(map[string]any)
	assert.Equal(t, saml.HTTPRedirectBinding, sso["binding"])
	assert.Equal(t, "https://idp.tugraz.at/idp/profile/SAML2/Redirect/SSO", sso["url"])
	assert.Equal(t, "SIGNINGCERTTWO", idpSettings["x509cert"], "last signing certificate, whitespace removed")
	sp := settings["sp"].(map[string]any)
	assert.Equal(t, "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified", sp["NameIDFormat"])
}

func TestBuildConfigLanguage(t *testing.T) {
	entities, err := ParseMetadata(loadFederation(t))
	require.NoError(t, err)

	cfg, err := BuildConfig(entities[0], "de")
	require.NoError(t, err)
	assert.Equal(t, "Technische Universität Graz", cfg["title"])
	assert.Equal(t, "Anmeldung für Angehörige der TU Graz", cfg["description"])
}

func TestBuildConfigFallsBackToEntityID(t *testing.T) {
	entities, err := ParseMetadata(loadFederation(t))
	require.NoError(t, err)

	cfg, err := BuildConfig(entities[1], "")
	require.NoError(t, err)
	assert.Equal(t, exampleIdP, cfg["title"])
	assert.Equal(t, exampleIdP, cfg["description"])
	assert.Equal(t, "", cfg["icon"])
}

func TestBuildConfigErrors(t *testing.T) {
	signing := saml.KeyDescriptor{Use: "signing"}
	signing.KeyInfo.X509Data.X509Certificates = []saml.X509Certificate{{Data: "CERT"}}
	redirect := saml.Endpoint{Binding: saml.HTTPRedirectBinding, Location: "https://a/sso"}

	entity := func(keys []saml.KeyDescriptor, sso ...saml.Endpoint) Entity {
		d := saml.IDPSSODescriptor{SingleSignOnServices: sso}
		d.KeyDescriptors = keys
		return Entity{
			EntityID:   "https://a/idp",
			Descriptor: saml.EntityDescriptor{EntityID: "https://a/idp", IDPSSODescriptors: []saml.IDPSSODescriptor{d}},
		}
	}

	_, err := BuildConfig(entity([]saml.KeyDescriptor{signing}), "en")
	assert.ErrorContains(t, err, "has 0 SSO-URLs")

	_, err = BuildConfig(entity([]saml.KeyDescriptor{signing}, redirect, redirect), "en")
	assert.ErrorContains(t, err, "has 2 SSO-URLs")

	encryption := saml.KeyDescriptor{Use: "encryption"}
	encryption.KeyInfo.X509Data.X509Certificates = []saml.X509Certificate{{Data: "ENC"}}
	_, err = BuildConfig(entity([]saml.KeyDescriptor{encryption}, redirect), "en")
	assert.ErrorContains(t, err, "has no signing certificates")

	_, err = BuildConfigs([]Entity{entity(nil, redirect)}, "en")
	assert.Error(t, err)
}

func TestPickSquarestLogo(t *testing.T) {
	logos := []Logo{
		{URL: "wide", Width: 300, Height: 100},
		{URL: "tall", Width: 50, Height: 80},
		{URL: "broken", Width: 0, Height: 10},
	}
	assert.Equal(t, "tall", PickSquarestLogo(logos, "none"))
	assert.Equal(t, "none", PickSquarestLogo(nil, "none"))
	assert.Equal(t, "first", PickSquarestLogo([]Logo{{URL: "first", Width: 2, Height: 1}, {URL: "second", Width: 1, Height: 2}}, ""))
}
