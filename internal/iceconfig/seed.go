package iceconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/pion/webrtc/v4"
	"gopkg.in/yaml.v3"
)

// DefaultSTUN are the public STUN servers every client gets unless a seed
// file says otherwise.
var DefaultSTUN = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
	"stun:stun2.l.google.com:19302",
	"stun:stun3.l.google.com:19302",
	"stun:stun4.l.google.com:19302",
}

type seedFile struct {
	IceServers []Server `yaml:"iceServers"`
}

// SeedOptions describe where the initial list comes from.
type SeedOptions struct {
	// File is a YAML document with an iceServers list. It replaces DefaultSTUN.
	File string
	// TURNURL, when set, appends a TURN entry with the given credentials.
	TURNURL        string
	TURNUsername   string
	TURNCredential string
}

// Seed builds the startup ICE server list.
func Seed(opts SeedOptions) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer
	if opts.File != "" {
		fromFile, err := LoadFile(opts.File)
		if err != nil {
			return nil, err
		}
		servers = fromFile
	} else {
		servers = []webrtc.ICEServer{{URLs: append([]string(nil), DefaultSTUN...)}}
	}

	if url := strings.TrimSpace(opts.TURNURL); url != "" {
		turn := Server{
			URLs:       StringList{url},
			Username:   opts.TURNUsername,
			Credential: opts.TURNCredential,
		}.Descriptor()
		if err := Validate(turn); err != nil {
			return nil, fmt.Errorf("ICE_SERVER_URL: %w", err)
		}
		servers = append(servers, turn)
	}
	return servers, nil
}

// LoadFile reads a YAML seed file.
func LoadFile(path string) ([]webrtc.ICEServer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ice servers file: %w", err)
	}
	var doc seedFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse ice servers file %s: %w", path, err)
	}
	servers, err := ParseServers(doc.IceServers)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return servers, nil
}
