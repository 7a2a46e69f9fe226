package config

import (
	"os"
	"path/filepath"
	"runtime"
)

type dirKind int

const (
	configKind dirKind = iota
	dataKind
	stateKind
)

// ConfigPath returns the platform-specific config file path
func ConfigPath() string {
	return filepath.Join(configDir(), configName+"."+configType)
}

func configDir() string {
	return appDir(runtime.GOOS, os.Getenv, configKind)
}

// ModelsPath returns the platform-specific models directory path
func ModelsPath() string {
	return filepath.Join(appDir(runtime.GOOS, os.Getenv, dataKind), "models")
}

// LogPath returns the platform-specific log file path
func LogPath() string {
	return filepath.Join(appDir(runtime.GOOS, os.Getenv, stateKind), appName+".log")
}

// appDir resolves the per-application directory of the given kind, following
// the XDG base directory variables on Linux.
func appDir(goos string, getenv func(string) string, kind dirKind) string {
	home := getenv("HOME")

	var base string
	switch goos {
	case "darwin":
		if kind == stateKind {
			base = filepath.Join(home, "Library", "Logs")
		} else {
			base = filepath.Join(home, "Library", "Application Support")
		}
	case "windows":
		if kind == configKind {
			base = getenv("APPDATA")
		} else {
			base = getenv("LOCALAPPDATA")
		}
	default:
		env, fallback := "XDG_CONFIG_HOME", ".config"
		switch kind {
		case dataKind:
			env, fallback = "XDG_DATA_HOME", filepath.Join(".local", "share")
		case stateKind:
			env, fallback = "XDG_STATE_HOME", filepath.Join(".local", "state")
		}
		if base = getenv(env); base == "" {
			base = filepath.Join(home, fallback)
		}
	}
	return filepath.Join(base, appName)
}
