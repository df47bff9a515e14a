package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:8080"

// Profile is the on-disk client configuration.
//
//	server = "http://localhost:8080"
//	token  = "eyJ..."
type Profile struct {
	Server string `toml:"server"`
	Token  string `toml:"token"`
}

// settings is resolved once per invocation: flags win over the profile.
var settings Profile

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coinflipctl.toml"
	}
	return filepath.Join(home, ".coinflipctl.toml")
}

// LoadProfile reads path. A missing file yields an empty profile.
func LoadProfile(path string) (Profile, error) {
	var p Profile
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, nil
		}
		return Profile{}, errors.Wrapf(err, "read profile %s", path)
	}
	return p, nil
}

func loadSettings(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("profile")
	p, err := LoadProfile(path)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetString("server"); v != "" {
		p.Server = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		p.Token = v
	}
	if p.Server == "" {
		p.Server = defaultServer
	}
	settings = p
	return nil
}
