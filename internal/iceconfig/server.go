// Package iceconfig owns the ICE server list handed to clients at connect and
// room-start time.
package iceconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pion/webrtc/v4"
)

var (
	ErrInvalidServer    = errors.New("invalid ice server")
	ErrIndexOutOfRange  = errors.New("ice server index out of range")
	errMissingURLs      = errors.New("missing urls")
	errEmptyURL         = errors.New("urls must not contain empty entries")
	errTURNMissingUser  = errors.New("turn urls require username")
	errTURNMissingCreds = errors.New("turn urls require credential")
)

// Server is the wire form of an ICE server, as browsers expect it in
// RTCConfiguration.iceServers. urls may be sent as a string or a list.
type Server struct {
	URLs       StringList `json:"urls" yaml:"urls"`
	Username   string     `json:"username,omitempty" yaml:"username,omitempty"`
	Credential string     `json:"credential,omitempty" yaml:"credential,omitempty"`
}

// StringList decodes from either a single string or a list of strings.
type StringList []string

func (s *StringList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// UnmarshalYAML accepts the same two shapes as UnmarshalJSON.
func (s *StringList) UnmarshalYAML(unmarshal func(any) error) error {
	var single string
	if err := unmarshal(&single); err == nil {
		*s = []string{single}
		return nil
	}
	var many []string
	if err := unmarshal(&many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Descriptor converts s into the pion representation, trimming whitespace.
func (s Server) Descriptor() webrtc.ICEServer {
	urls := make([]string, 0, len(s.URLs))
	for _, u := range s.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	d := webrtc.ICEServer{
		URLs:     urls,
		Username: strings.TrimSpace(s.Username),
	}
	if strings.TrimSpace(s.Credential) != "" {
		d.Credential = s.Credential
	}
	return d
}

// FromDescriptor is the inverse of Server.Descriptor.
func FromDescriptor(d webrtc.ICEServer) Server {
	s := Server{
		URLs:     append(StringList(nil), d.URLs...),
		Username: d.Username,
	}
	if cred, ok := d.Credential.(string); ok {
		s.Credential = cred
	}
	return s
}

// Validate checks url schemes and TURN credentials.
func Validate(d webrtc.ICEServer) error {
	if len(d.URLs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidServer, errMissingURLs)
	}

	requiresTURNCreds := false
	for _, raw := range d.URLs {
		url := strings.ToLower(strings.TrimSpace(raw))
		if url == "" {
			return fmt.Errorf("%w: %w", ErrInvalidServer, errEmptyURL)
		}
		switch {
		case strings.HasPrefix(url, "stun:"), strings.HasPrefix(url, "stuns:"):
		case strings.HasPrefix(url, "turn:"), strings.HasPrefix(url, "turns:"):
			requiresTURNCreds = true
		default:
			return fmt.Errorf("%w: unsupported url scheme: %q", ErrInvalidServer, raw)
		}
	}

	if requiresTURNCreds {
		if strings.TrimSpace(d.Username) == "" {
			return fmt.Errorf("%w: %w", ErrInvalidServer, errTURNMissingUser)
		}
		cred, ok := d.Credential.(string)
		if !ok || strings.TrimSpace(cred) == "" {
			return fmt.Errorf("%w: %w", ErrInvalidServer, errTURNMissingCreds)
		}
	}
	return nil
}

// ParseServers validates a list of wire servers and converts them.
func ParseServers(servers []Server) ([]webrtc.ICEServer, error) {
	out := make([]webrtc.ICEServer, 0, len(servers))
	for i, s := range servers {
		d := s.Descriptor()
		if err := Validate(d); err != nil {
			return nil, fmt.Errorf("iceServers[%d]: %w", i, err)
		}
		out = append(out, d)
	}
	return out, nil
}
