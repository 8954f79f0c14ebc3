package model

import (
	"reflect"
	"testing"
)

func TestParseRole(t *testing.T) {
	for _, r := range Roles {
		got, err := ParseRole(string(r))
		if err != nil || got != r {
			t.Errorf("ParseRole(%q) = %q, %v", r, got, err)
		}
	}
	if _, err := ParseRole("root"); err == nil {
		t.Error("expected error for unknown role")
	}
	if _, err := ParseRole(""); err == nil {
		t.Error("expected error for empty role")
	}
}

func TestUserIsZero(t *testing.T) {
	if !(User{}).IsZero() {
		t.Error("empty user should be zero")
	}
	if (User{ID: "u1"}).IsZero() {
		t.Error("user with id should not be zero")
	}
}

func TestProfileFilename(t *testing.T) {
	tests := []struct {
		os   ClientOS
		want string
	}{
		{OSLinux, "c42.conf"},
		{OSWindows, "c42.ovpn"},
		{OSMacOS, "c42.ovpn"},
		{OSAndroid, "c42.ovpn"},
		{OSIOS, "c42.ovpn"},
	}
	for _, tt := range tests {
		if got := ProfileFilename("c42", tt.os); got != tt.want {
			t.Errorf("ProfileFilename(c42, %s) = %q, want %q", tt.os, got, tt.want)
		}
	}
	if _, err := ParseClientOS("beos"); err == nil {
		t.Error("expected error for unknown os")
	}
}

func TestConfigItemParseValue(t *testing.T) {
	tests := []struct {
		name    string
		item    ConfigItem
		raw     string
		want    any
		wantErr bool
	}{
		{"number", ConfigItem{Key: "port", Type: ConfigNumber}, "1194", float64(1194), false},
		{"number invalid", ConfigItem{Key: "port", Type: ConfigNumber}, "abc", nil, true},
		{"number required empty", ConfigItem{Key: "port", Type: ConfigNumber, Required: true}, " ", nil, true},
		{"boolean on", ConfigItem{Key: "tls", Type: ConfigBoolean}, "on", true, false},
		{"boolean unchecked", ConfigItem{Key: "tls", Type: ConfigBoolean, Required: true}, "", false, false},
		{"boolean garbage", ConfigItem{Key: "tls", Type: ConfigBoolean}, "maybe", nil, true},
		{"array lines", ConfigItem{Key: "dns", Type: ConfigArray}, "1.1.1.1\n 8.8.8.8 \n\n", []string{"1.1.1.1", "8.8.8.8"}, false},
		{"array commas", ConfigItem{Key: "dns", Type: ConfigArray}, "a,b", []string{"a", "b"}, false},
		{"select ok", ConfigItem{Key: "proto", Type: ConfigSelect, Options: []ConfigOption{{Value: "udp"}, {Value: "tcp"}}}, "tcp", "tcp", false},
		{"select bad", ConfigItem{Key: "proto", Type: ConfigSelect, Options: []ConfigOption{{Value: "udp"}}}, "icmp", nil, true},
		{"text", ConfigItem{Key: "name", Type: ConfigText}, " vpn ", "vpn", false},
		{"text required", ConfigItem{Key: "name", Type: ConfigText, Required: true}, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.item.ParseValue(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestConfigItemDisplayValue(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{float64(1194), "1194"},
		{true, "true"},
		{[]any{"a", "b"}, "a\nb"},
		{[]string{"x"}, "x"},
		{"udp", "udp"},
	}
	for _, tt := range tests {
		if got := (ConfigItem{Value: tt.value}).DisplayValue(); got != tt.want {
			t.Errorf("DisplayValue(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
