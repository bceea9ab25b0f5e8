package remote

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

const (
	// ActionSendKey is the SOAP action that injects one remote key press
	ActionSendKey = "X_SendKey"

	// EnvelopeNamespace is the SOAP envelope namespace the TVs accept.
	// It omits the trailing slash of the SOAP 1.1 URI.
	EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope"

	// EncodingStyle is the SOAP encoding style attribute value
	EncodingStyle = "http://schemas.xmlsoap.org/soap/encoding/"

	// ContentType of command requests
	ContentType = "text/xml"
)

// Envelope wraps params in a SOAP envelope that invokes action in the
// serviceType namespace. params must already be XML.
func Envelope(serviceType, action, params string) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0"?>`)
	fmt.Fprintf(&b, `<SOAP-ENV:Envelope xmlns:SOAP-ENV="%s" SOAP-ENV:encodingStyle="%s">`, EnvelopeNamespace, EncodingStyle)
	b.WriteString(`<SOAP-ENV:Body>`)
	fmt.Fprintf(&b, `<m:%s xmlns:m="%s">`, action, escape(serviceType))
	b.WriteString(params)
	fmt.Fprintf(&b, `</m:%s>`, action)
	b.WriteString(`</SOAP-ENV:Body>`)
	b.WriteString(`</SOAP-ENV:Envelope>`)
	return b.Bytes()
}

// SendKeyBody builds the X_SendKey request body for one key identifier.
func SendKeyBody(serviceType, keyID string) []byte {
	return Envelope(serviceType, ActionSendKey, "<X_KeyEvent>"+escape(keyID)+"</X_KeyEvent>")
}

// SOAPAction returns the quoted SOAPAction header value.
func SOAPAction(serviceType, action string) string {
	return fmt.Sprintf(`"%s#%s"`, serviceType, action)
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

// Fault is the useful part of a SOAP fault. TVs report UPnP errors in
// detail/UPnPError; faultstring is usually just "UPnPError".
type Fault struct {
	Code        string
	Description string
	String      string
}

// ParseFault extracts a fault from a response body. It matches local names
// only, since TVs are inconsistent about namespace prefixes.
func ParseFault(body []byte) (*Fault, bool) {
	var fault Fault
	found := false

	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		var target *string
		switch start.Name.Local {
		case "Fault":
			found = true
		case "faultstring":
			target = &fault.String
		case "errorCode":
			target = &fault.Code
		case "errorDescription":
			target = &fault.Description
		}

		if target != nil {
			var text string
			if err := decoder.DecodeElement(&text, &start); err != nil {
				return nil, false
			}
			*target = strings.TrimSpace(text)
		}
	}

	if !found {
		return nil, false
	}
	return &fault, true
}
