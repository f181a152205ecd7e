package apiclient

import (
	"bytes"
	"mime"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/bytedance/sonic"
)

type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyJSON
	bodyText
)

// responseBody is a response body resolved once into JSON, text or empty.
type responseBody struct {
	kind bodyKind
	raw  []byte
	// jsonType is set for bodyJSON.
	jsonType jsonparser.ValueType
	// declaredJSON records the Content-Type, which decides how 2xx bodies are read.
	declaredJSON bool
}

func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func resolveBody(contentType string, data []byte) responseBody {
	b := responseBody{raw: data, declaredJSON: isJSONContentType(contentType)}
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		b.kind = bodyEmpty
	case sonic.ConfigStd.Valid(trimmed):
		_, dataType, _, err := jsonparser.Get(trimmed)
		if err != nil {
			b.kind = bodyText
			break
		}
		b.kind = bodyJSON
		b.raw = trimmed
		b.jsonType = dataType
	default:
		b.kind = bodyText
	}
	return b
}

// errorMessage derives the user-facing message of a non-2xx response:
// a JSON string verbatim; else the error, detail or message field; else
// every field as "key: value" joined by " | "; else the raw text; else a
// generic status line.
func errorMessage(b responseBody, status int) string {
	switch b.kind {
	case bodyJSON:
		switch b.jsonType {
		case jsonparser.String:
			if s, err := jsonparser.ParseString(b.raw[1 : len(b.raw)-1]); err == nil && s != "" {
				return s
			}
		case jsonparser.Object:
			if msg := objectMessage(b.raw); msg != "" {
				return msg
			}
		case jsonparser.Array:
			if msg := renderValue(b.raw, jsonparser.Array); msg != "" {
				return msg
			}
		case jsonparser.Number, jsonparser.Boolean:
			return string(b.raw)
		}
	case bodyText:
		return string(b.raw)
	}
	return genericStatusMessage(status)
}

var messageFields = []string{"error", "detail", "message"}

func objectMessage(raw []byte) string {
	for _, field := range messageFields {
		value, dataType, _, err := jsonparser.Get(raw, field)
		if err != nil || isFalsy(value, dataType) {
			continue
		}
		return renderValue(value, dataType)
	}

	var parts []string
	_ = jsonparser.ObjectEach(raw, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			name = string(key)
		}
		parts = append(parts, name+": "+renderValue(value, dataType))
		return nil
	})
	return strings.Join(parts, " | ")
}

// isFalsy treats null, false, 0 and "" as absent so the next field is tried.
func isFalsy(value []byte, dataType jsonparser.ValueType) bool {
	switch dataType {
	case jsonparser.Null, jsonparser.NotExist:
		return true
	case jsonparser.Boolean:
		return string(value) == "false"
	case jsonparser.Number:
		f, err := jsonparser.ParseFloat(value)
		return err == nil && f == 0
	case jsonparser.String:
		return len(value) == 0
	}
	return false
}

// renderValue renders strings unquoted, arrays as their elements joined by
// ", " and anything else as raw JSON.
func renderValue(value []byte, dataType jsonparser.ValueType) string {
	switch dataType {
	case jsonparser.String:
		s, err := jsonparser.ParseString(value)
		if err != nil {
			return string(value)
		}
		return s
	case jsonparser.Array:
		var items []string
		_, _ = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			items = append(items, renderValue(item, itemType))
		})
		return strings.Join(items, ", ")
	case jsonparser.Null:
		return "null"
	default:
		return string(value)
	}
}
