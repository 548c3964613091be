// Package connection turns raw user input into a camera connection string.
//
// Nothing here touches the network: the result is handed to a capture
// backend, which owns the transport.
package connection

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidInput is returned when neither a URL nor a host/port pair is
// given, or when credentials cannot be placed into the URL.
var ErrInvalidInput = errors.New("invalid input")

// DefaultStreamPath is appended to host/port connections
const DefaultStreamPath = "/video"

// Params is the raw input collected from a control surface
type Params struct {
	URL      string `json:"url" yaml:"url" mapstructure:"url"`
	Host     string `json:"host" yaml:"host" mapstructure:"host"`
	Port     string `json:"port" yaml:"port" mapstructure:"port"`
	Username string `json:"username" yaml:"username" mapstructure:"username"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`
}

// Spec is a validated connection description. Either RawURL or Host/Port
// is set; Username and Password are both set or both empty. A lone username
// or password counts as no credentials.
type Spec struct {
	Scheme   string
	Host     string
	Port     string
	Username string
	Password string
	Path     string
	RawURL   string
}

// Build validates the input and returns the connection string
func Build(p Params) (string, error) {
	spec, err := Parse(p)
	if err != nil {
		return "", err
	}
	return spec.String(), nil
}

// Parse validates the input and returns an immutable Spec
func Parse(p Params) (Spec, error) {
	rawURL := strings.TrimSpace(p.URL)
	host := strings.TrimSpace(p.Host)
	port := strings.TrimSpace(p.Port)

	username, password := p.Username, p.Password
	if username == "" || password == "" {
		username, password = "", ""
	}

	if rawURL != "" {
		scheme, rest, ok := strings.Cut(rawURL, "://")
		if username != "" && (!ok || scheme == "" || rest == "") {
			return Spec{}, fmt.Errorf("%w: url %q has no scheme to place credentials after", ErrInvalidInput, rawURL)
		}
		if !ok {
			scheme = ""
		}
		spec := Spec{
			Scheme:   scheme,
			Username: username,
			Password: password,
			RawURL:   rawURL,
		}
		// Best effort breakdown for status display; the raw URL stays authoritative
		if u, err := url.Parse(rawURL); err == nil {
			spec.Host = u.Hostname()
			spec.Port = u.Port()
			spec.Path = u.Path
		}
		return spec, nil
	}

	if host == "" || port == "" {
		return Spec{}, fmt.Errorf("%w: enter either a streaming URL or both IP address and port", ErrInvalidInput)
	}

	return Spec{
		Scheme:   "http",
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		Path:     DefaultStreamPath,
	}, nil
}

// HasCredentials reports whether credentials will be embedded
func (s Spec) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

// String renders the connection string
func (s Spec) String() string {
	if s.RawURL != "" {
		if !s.HasCredentials() {
			return s.RawURL
		}
		return injectUserinfo(s.RawURL, userinfo(s.Username, s.Password))
	}

	var b strings.Builder
	b.WriteString(s.Scheme)
	b.WriteString("://")
	if s.HasCredentials() {
		b.WriteString(userinfo(s.Username, s.Password))
		b.WriteByte('@')
	}
	b.WriteString(net.JoinHostPort(s.Host, s.Port))
	b.WriteString(s.Path)
	return b.String()
}

// Redacted renders the connection string with the password masked
func (s Spec) Redacted() string {
	return Redact(s.String())
}

// userinfo percent-encodes user and password independently
func userinfo(username, password string) string {
	return url.UserPassword(username, password).String()
}

// injectUserinfo places userinfo right after "scheme://", replacing any
// userinfo already present in the authority. The rest of the URL is kept
// byte for byte.
func injectUserinfo(rawURL, info string) string {
	scheme, rest, _ := strings.Cut(rawURL, "://")

	authEnd := strings.IndexAny(rest, "/?#")
	if authEnd < 0 {
		authEnd = len(rest)
	}
	if at := strings.LastIndex(rest[:authEnd], "@"); at >= 0 {
		rest = rest[at+1:]
	}

	return scheme + "://" + info + "@" + rest
}

// Redact masks the password of a connection string for logs. Strings that
// do not parse are returned with everything before the last '@' hidden.
func Redact(conn string) string {
	u, err := url.Parse(conn)
	if err == nil {
		return u.Redacted()
	}
	scheme, rest, ok := strings.Cut(conn, "://")
	if !ok {
		return conn
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://xxxxx@" + rest[at+1:]
	}
	return conn
}
