package awserr

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Normalize parses a non-2xx response body according to its content type
// family and returns the normalized Error. It never fails: a body that does
// not parse under its declared family degrades to an Error without code and
// message, carrying the raw body instead.
func Normalize(statusCode int, contentType string, body []byte) *Error {
	var (
		code, message string
		ok            bool
	)
	switch familyOf(contentType) {
	case familyAmzJSON:
		code, message, ok = parseAmzJSON(body)
	case familyJSON:
		code, message, ok = parseJSON(body)
	case familyXML:
		code, message, ok = parseXML(body)
	default:
		ok = false
	}
	if !ok {
		log.Debugf("awsclient: unparseable error response, content type %q, status %d", contentType, statusCode)
		return &Error{StatusCode: statusCode, RawBody: body}
	}
	return &Error{Code: code, Message: message, StatusCode: statusCode}
}

// parseAmzJSON handles the application/x-amz-json-1.0 and -1.1 shape, where
// the error type is the fragment of the __type field after the final '#'.
func parseAmzJSON(body []byte) (code, message string, ok bool) {
	var payload struct {
		Type         string `json:"__type"`
		Message      string `json:"message"`
		UpperMessage string `json:"Message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", false
	}
	code = payload.Type
	if i := strings.LastIndex(code, "#"); i >= 0 {
		code = code[i+1:]
	}
	message = payload.Message
	if message == "" {
		message = payload.UpperMessage
	}
	return code, message, true
}

func parseJSON(body []byte) (code, message string, ok bool) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", false
	}
	code = stringField(payload, "Code", "code")
	message = stringField(payload, "Message", "message")
	return code, message, true
}

func stringField(payload map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := payload[k].(string); ok {
			return s
		}
	}
	return ""
}

// parseXML scans the document for the first Code and Message elements,
// whatever error envelope they are nested in. Missing elements are
// tolerated as long as the document itself is well formed and yields at
// least one of the two.
func parseXML(body []byte) (code, message string, ok bool) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for code == "" || message == "" {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		start, isStart := token.(xml.StartElement)
		if !isStart {
			continue
		}
		switch start.Name.Local {
		case "Code":
			if code == "" {
				if err := decoder.DecodeElement(&code, &start); err != nil {
					return "", "", false
				}
			}
		case "Message":
			if message == "" {
				if err := decoder.DecodeElement(&message, &start); err != nil {
					return "", "", false
				}
			}
		}
	}
	return code, message, code != "" || message != ""
}
