package model

import (
	"fmt"
	"time"
)

// VPNClient is an issued OpenVPN client certificate.
type VPNClient struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	UserID       string     `json:"userId"`
	DepartmentID string     `json:"departmentId,omitempty"`
	Email        string     `json:"email,omitempty"`
	FixedIP      string     `json:"fixedIp,omitempty"`
	Revoked      bool       `json:"revoked"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// VPNClientInput creates a client for a user.
type VPNClientInput struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

// ClientOS selects the profile flavour to download.
type ClientOS string

const (
	OSWindows ClientOS = "windows"
	OSMacOS   ClientOS = "macos"
	OSLinux   ClientOS = "linux"
	OSAndroid ClientOS = "android"
	OSIOS     ClientOS = "ios"
)

// ProfileExt returns the profile extension for os: Linux openvpn reads
// ".conf", every other client imports ".ovpn".
func (os ClientOS) ProfileExt() string {
	if os == OSLinux {
		return "conf"
	}
	return "ovpn"
}

// ProfileFilename names a downloaded profile as {clientId}.{conf|ovpn}.
func ProfileFilename(clientID string, os ClientOS) string {
	return fmt.Sprintf("%s.%s", clientID, os.ProfileExt())
}

// ParseClientOS validates s.
func ParseClientOS(s string) (ClientOS, error) {
	switch ClientOS(s) {
	case OSWindows, OSMacOS, OSLinux, OSAndroid, OSIOS:
		return ClientOS(s), nil
	}
	return "", fmt.Errorf("unknown client os %q", s)
}

// Profile is a downloaded client configuration blob.
type Profile struct {
	Filename string
	Data     []byte
}

// LogEntry is one line of the OpenVPN server log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
}

// LogPage is a window into the server log.
type LogPage struct {
	Entries []LogEntry `json:"entries"`
	Offset  int        `json:"offset"`
	Limit   int        `json:"limit"`
	Total   int        `json:"total"`
}

// Connection is a live VPN session.
type Connection struct {
	ClientID       string    `json:"clientId"`
	CommonName     string    `json:"commonName"`
	RealAddress    string    `json:"realAddress"`
	VirtualAddress string    `json:"virtualAddress"`
	BytesReceived  int64     `json:"bytesReceived"`
	BytesSent      int64     `json:"bytesSent"`
	ConnectedSince time.Time `json:"connectedSince"`
}

// ServerStatus reports the OpenVPN daemon state.
type ServerStatus struct {
	Running     bool      `json:"running"`
	Version     string    `json:"version,omitempty"`
	Uptime      int64     `json:"uptime,omitempty"`
	Connections int       `json:"connections"`
	StartedAt   time.Time `json:"startedAt,omitempty"`
}
