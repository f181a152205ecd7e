package apiclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        string
	}{
		{name: "detail", body: `{"detail":"Authentication credentials were not provided."}`, status: 403, want: "Authentication credentials were not provided."},
		{name: "error wins over detail", body: `{"detail":"d","error":"e","message":"m"}`, status: 400, want: "e"},
		{name: "detail wins over message", body: `{"message":"m","detail":"d"}`, status: 400, want: "d"},
		{name: "message", body: `{"message":"m","code":7}`, status: 500, want: "m"},
		{name: "empty error falls through", body: `{"error":"","detail":"d"}`, status: 400, want: "d"},
		{name: "null error falls through", body: `{"error":null,"message":"m"}`, status: 400, want: "m"},
		{name: "non-string error as json", body: `{"error":{"code":"E1"}}`, status: 400, want: `{"code":"E1"}`},
		{name: "detail list", body: `{"detail":["a","b"]}`, status: 400, want: "a, b"},
		{name: "field errors", body: `{"username": ["This field is required."]}`, status: 400, want: "username: This field is required."},
		{
			name:   "field errors keep document order",
			body:   `{"password":["Too short.","Too common."],"email":"Enter a valid email address.","age":3}`,
			status: 400,
			want:   "password: Too short., Too common. | email: Enter a valid email address. | age: 3",
		},
		{name: "escaped strings", body: `{"name":"café \"x\""}`, status: 400, want: `name: café "x"`},
		{name: "json string verbatim", body: `"Token is blacklisted"`, status: 401, want: "Token is blacklisted"},
		{name: "empty json string", body: `""`, status: 400, want: "HTTP error! status: 400"},
		{name: "empty object", body: `{}`, status: 409, want: "HTTP error! status: 409"},
		{name: "json null", body: `null`, status: 500, want: "HTTP error! status: 500"},
		{name: "top level array", body: `["x","y"]`, status: 400, want: "x, y"},
		{name: "plain text", contentType: "text/plain", body: "Bad Gateway", status: 502, want: "Bad Gateway"},
		{name: "html", contentType: "text/html", body: "<h1>Not Found</h1>", status: 404, want: "<h1>Not Found</h1>"},
		{name: "json declared but broken", contentType: "application/json", body: `{"detail":`, status: 500, want: `{"detail":`},
		{name: "empty body", contentType: "application/json", body: "", status: 503, want: "HTTP error! status: 503"},
		{name: "whitespace body", body: "  \n", status: 404, want: "HTTP error! status: 404"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := tt.contentType
			if ct == "" {
				ct = "application/json"
			}
			assert.Equal(t, tt.want, errorMessage(resolveBody(ct, []byte(tt.body)), tt.status))
		})
	}
}

func TestResolveBody(t *testing.T) {
	b := resolveBody("application/json; charset=utf-8", []byte(" {\"a\":1} "))
	assert.Equal(t, bodyJSON, b.kind)
	assert.True(t, b.declaredJSON)
	assert.Equal(t, `{"a":1}`, string(b.raw))

	b = resolveBody("application/problem+json", []byte(`{"title":"x"}`))
	assert.True(t, b.declaredJSON)

	b = resolveBody("text/plain", []byte(`{"a":1}`))
	assert.Equal(t, bodyJSON, b.kind, "JSON text is recognised regardless of content type")
	assert.False(t, b.declaredJSON)

	b = resolveBody("", []byte("hello"))
	assert.Equal(t, bodyText, b.kind)

	b = resolveBody("application/json", nil)
	assert.Equal(t, bodyEmpty, b.kind)
}

func TestIsJSONContentType(t *testing.T) {
	assert.True(t, isJSONContentType("application/json"))
	assert.True(t, isJSONContentType("Application/JSON; charset=utf-8"))
	assert.True(t, isJSONContentType("application/vnd.api+json"))
	assert.False(t, isJSONContentType("text/csv"))
	assert.False(t, isJSONContentType(""))
}
