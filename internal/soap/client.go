// Package soap speaks the ONVIF dialect of SOAP: fixed-shape request
// envelopes posted over HTTP, answered with XML that varies wildly between
// vendors. Requests are exact; response parsing is deliberately forgiving.
package soap

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/technosupport/ts-snapscout/internal/device"
	"github.com/technosupport/ts-snapscout/internal/httpauth"
)

// ONVIF namespace URIs. These are wire constants; changing one breaks
// protocol compatibility.
const (
	NSEnvelope = "http://www.w3.org/2003/05/soap-envelope"
	NSDevice   = "http://www.onvif.org/ver10/device/wsdl"
	NSMedia    = "http://www.onvif.org/ver10/media/wsdl"
	NSMedia2   = "http://www.onvif.org/ver20/media/wsdl"
	NSSchema   = "http://www.onvif.org/ver10/schema"
	NSImaging  = "http://www.onvif.org/ver20/imaging/wsdl"
	NSSecurity = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
	NSUtility  = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
)

// Namespaces maps the short prefixes used in documentation and vendor
// responses to their URIs.
var Namespaces = map[string]string{
	"s":    NSEnvelope,
	"tds":  NSDevice,
	"trt":  NSMedia,
	"tr2":  NSMedia2,
	"tt":   NSSchema,
	"timg": NSImaging,
}

// Recorder receives per-request outcomes. Satisfied by metrics.Collector.
type Recorder interface {
	ObserveSOAP(operation string, status int)
}

// Client posts ONVIF envelopes. Safe for concurrent use across independent
// acquisitions.
type Client struct {
	HTTP     *http.Client
	Recorder Recorder
}

func NewClient(timeout time.Duration) *Client {
	return &Client{HTTP: &http.Client{Timeout: timeout}}
}

// GetProfilesBody is the GetProfiles request body.
func GetProfilesBody() string {
	return `<GetProfiles xmlns="` + NSMedia + `"/>`
}

// GetStreamURIBody requests an RTP-Unicast/RTSP stream URI for a profile.
func GetStreamURIBody(profileToken string) string {
	return fmt.Sprintf(`<GetStreamUri xmlns="%s">
    <StreamSetup>
        <Stream xmlns="%s">RTP-Unicast</Stream>
        <Transport xmlns="%s">
            <Protocol>RTSP</Protocol>
        </Transport>
    </StreamSetup>
    <ProfileToken>%s</ProfileToken>
</GetStreamUri>`, NSMedia, NSSchema, NSSchema, xmlEscape(profileToken))
}

// GetSnapshotURIBody requests the still-image URI for a profile.
func GetSnapshotURIBody(profileToken string) string {
	return fmt.Sprintf(`<GetSnapshotUri xmlns="%s">
    <ProfileToken>%s</ProfileToken>
</GetSnapshotUri>`, NSMedia, xmlEscape(profileToken))
}

// GetCapabilitiesBody queries media and imaging capabilities.
func GetCapabilitiesBody() string {
	return fmt.Sprintf(`<tds:GetCapabilities xmlns:tds="%s">
    <tds:Category>Media</tds:Category>
    <tds:Category>Imaging</tds:Category>
</tds:GetCapabilities>`, NSDevice)
}

// Do posts the envelope and returns the parsed response document on HTTP
// 200. Any other status, transport failure, or unparsable body yields nil:
// "this endpoint is not viable", never a pipeline-fatal condition. operation
// labels the request for logs and metrics.
func (c *Client) Do(ctx context.Context, url, operation, body string, cred device.Credential) *Response {
	payload := []byte(Envelope(body, cred))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", `application/soap+xml; charset=utf-8`)

	resp, err := httpauth.Do(c.HTTP, req, payload, cred)
	if err != nil {
		log.Printf("[soap] %s %s: %v", operation, url, err)
		if c.Recorder != nil {
			c.Recorder.ObserveSOAP(operation, 0)
		}
		return nil
	}
	defer resp.Body.Close()
	if c.Recorder != nil {
		c.Recorder.ObserveSOAP(operation, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		log.Printf("[soap] %s %s: read: %v", operation, url, err)
		return nil
	}
	doc, err := Parse(raw)
	if err != nil {
		log.Printf("[soap] %s %s: malformed response: %v", operation, url, err)
		return nil
	}
	return doc
}

// Envelope wraps a body in the SOAP envelope. When the credential carries a
// username a WS-Security UsernameToken header is included: many firmwares
// ignore HTTP auth on the media service and only honor the SOAP header.
func Envelope(body string, cred device.Credential) string {
	header := ""
	if cred.Username != "" {
		header = securityHeader(cred)
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<s:Envelope xmlns:s="%s">
    <s:Header>%s</s:Header>
    <s:Body>%s</s:Body>
</s:Envelope>`, NSEnvelope, header, body)
}

func securityHeader(cred device.Credential) string {
	nonceRaw := fmt.Sprintf("%d", time.Now().UnixNano())
	nonce := base64.StdEncoding.EncodeToString([]byte(nonceRaw))
	created := time.Now().UTC().Format(time.RFC3339)
	digest := passwordDigest(nonceRaw, created, cred.Password)

	return fmt.Sprintf(`<Security xmlns="%s">
        <UsernameToken>
            <Username>%s</Username>
            <Password Type="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-username-token-profile-1.0#PasswordDigest">%s</Password>
            <Nonce EncodingType="http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-soap-message-security-1.0#Base64Binary">%s</Nonce>
            <Created xmlns="%s">%s</Created>
        </UsernameToken>
    </Security>`, NSSecurity, xmlEscape(cred.Username), digest, nonce, NSUtility, created)
}

// xmlEscape makes a caller-supplied value safe to interpolate as XML
// character data. Profile tokens and usernames come from devices and
// operators, not from us.
func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return ""
	}
	return b.String()
}

// passwordDigest = Base64(SHA1(nonce + created + password)) per the
// WS-UsernameToken profile.
func passwordDigest(nonce, created, password string) string {
	h := sha1.New()
	h.Write([]byte(nonce))
	h.Write([]byte(created))
	h.Write([]byte(password))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
