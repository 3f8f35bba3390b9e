package soap

import (
	"encoding/xml"
	"strings"

	"github.com/clbanning/mxj"
)

// MediaProfile is the slice of a profile we need: the token drives every
// further call, the name is for operators.
type MediaProfile struct {
	Token string `json:"token"`
	Name  string `json:"name"`
}

// Response is a parsed SOAP response. Lookups are two-tier: a typed
// unmarshal against the shapes well-behaved devices return, then a
// namespace-agnostic walk over the raw document for firmware that renames
// prefixes, drops namespaces, or rearranges wrappers.
type Response struct {
	structured envelope
	doc        mxj.Map
}

type envelope struct {
	Body struct {
		GetProfilesResponse struct {
			Profiles []xmlProfile `xml:"Profiles"`
		} `xml:"GetProfilesResponse"`
		GetStreamURIResponse struct {
			MediaURI struct {
				URI string `xml:"Uri"`
			} `xml:"MediaUri"`
		} `xml:"GetStreamUriResponse"`
		GetSnapshotURIResponse struct {
			MediaURI struct {
				URI string `xml:"Uri"`
			} `xml:"MediaUri"`
		} `xml:"GetSnapshotUriResponse"`
	} `xml:"Body"`
}

type xmlProfile struct {
	Token string `xml:"token,attr"`
	Name  string `xml:"Name"`
}

// Parse decodes a response document. It succeeds if either tier can read
// the XML; both failing means the body is not XML at all.
func Parse(raw []byte) (*Response, error) {
	r := &Response{}
	structErr := xml.Unmarshal(raw, &r.structured)
	doc, docErr := mxj.NewMapXml(raw)
	if docErr != nil {
		if structErr != nil {
			return nil, docErr
		}
		doc = nil
	}
	r.doc = doc
	return r, nil
}

// Profiles extracts media profiles: structured result first, then the
// tolerant walk looking for Profiles/Profile elements with a token
// attribute. Entries without a token are useless downstream and dropped.
func (r *Response) Profiles() []MediaProfile {
	var out []MediaProfile
	for _, p := range r.structured.Body.GetProfilesResponse.Profiles {
		if p.Token != "" {
			out = append(out, MediaProfile{Token: p.Token, Name: p.Name})
		}
	}
	if len(out) > 0 {
		return out
	}

	elems := r.FindElements("Profiles")
	if len(elems) == 0 {
		elems = r.FindElements("Profile")
	}
	for _, e := range elems {
		token := attrOf(e, "token")
		if token == "" {
			continue
		}
		name := attrOf(e, "name")
		if name == "" {
			name, _ = firstText(e, "Name")
		}
		out = append(out, MediaProfile{Token: token, Name: name})
	}
	return out
}

// URI extracts the first Uri element: the answer to both GetStreamUri and
// GetSnapshotUri.
func (r *Response) URI() (string, bool) {
	if u := r.structured.Body.GetStreamURIResponse.MediaURI.URI; u != "" {
		return u, true
	}
	if u := r.structured.Body.GetSnapshotURIResponse.MediaURI.URI; u != "" {
		return u, true
	}
	return r.FirstText("Uri")
}

// Has reports whether an element with the given local name appears anywhere.
func (r *Response) Has(local string) bool {
	return len(r.FindElements(local)) > 0
}

// FindElements returns every element whose local name matches, at any depth,
// regardless of namespace prefix. This is the resilient fallback lookup.
func (r *Response) FindElements(local string) []interface{} {
	if r.doc == nil {
		return nil
	}
	var out []interface{}
	walk(map[string]interface{}(r.doc), local, &out)
	return out
}

// FirstText returns the character data of the first matching element.
func (r *Response) FirstText(local string) (string, bool) {
	for _, e := range r.FindElements(local) {
		if s := textOf(e); s != "" {
			return s, true
		}
	}
	return "", false
}

// SearchText finds the character data of the first element with the given
// local name inside a subtree returned by FindElements.
func SearchText(node interface{}, local string) (string, bool) {
	return firstText(node, local)
}

func firstText(node interface{}, local string) (string, bool) {
	var out []interface{}
	walk(node, local, &out)
	for _, e := range out {
		if s := textOf(e); s != "" {
			return s, true
		}
	}
	return "", false
}

// walk descends the mxj document collecting values under keys whose local
// name matches. mxj stores attributes under "-name" and character data under
// "#text"; both are skipped as element candidates.
func walk(v interface{}, local string, out *[]interface{}) {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if strings.HasPrefix(k, "-") || k == "#text" {
				continue
			}
			if localName(k) == strings.ToLower(local) {
				if list, ok := child.([]interface{}); ok {
					*out = append(*out, list...)
				} else {
					*out = append(*out, child)
				}
				continue
			}
			walk(child, local, out)
		}
	case []interface{}:
		for _, e := range t {
			walk(e, local, out)
		}
	}
}

func localName(key string) string {
	if i := strings.Index(key, ":"); i >= 0 {
		key = key[i+1:]
	}
	return strings.ToLower(key)
}

func textOf(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if s, ok := t["#text"].(string); ok {
			return s
		}
	}
	return ""
}

func attrOf(node interface{}, name string) string {
	m, ok := node.(map[string]interface{})
	if !ok {
		return ""
	}
	for k, v := range m {
		if !strings.HasPrefix(k, "-") {
			continue
		}
		if strings.EqualFold(k[1:], name) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
