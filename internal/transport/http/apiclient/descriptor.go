package apiclient

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
)

// Descriptor describes one request. It is not retained after Send returns.
type Descriptor struct {
	Method string
	// Path is resolved against the client's base URL unless it is absolute.
	Path string
	// Body is JSON-encoded unless it is []byte, string or io.Reader.
	Body    any
	Headers http.Header
	// SkipAuth sends the request without a stored bearer token and without
	// the refresh-and-replay step. Used for login, registration and refresh.
	SkipAuth bool
}

func (d Descriptor) method() string {
	if d.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(d.Method)
}

// withBearer returns a copy whose Authorization header carries token.
func (d Descriptor) withBearer(token string) Descriptor {
	d.Headers = d.Headers.Clone()
	if d.Headers == nil {
		d.Headers = http.Header{}
	}
	d.Headers.Set("Authorization", "Bearer "+token)
	return d
}

// encodeBody runs once per Send; a replay resends the same bytes.
func (d Descriptor) encodeBody() ([]byte, error) {
	switch b := d.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case io.Reader:
		return io.ReadAll(b)
	default:
		return sonic.ConfigStd.Marshal(b)
	}
}

func bodyReader(data []byte) io.Reader {
	if data == nil {
		return nil
	}
	return bytes.NewReader(data)
}
