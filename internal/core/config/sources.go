package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Sources names the external datasets and Earth Engine collections.
type Sources struct {
	Datasets          map[string]string `koanf:"datasets"`
	EEImageSets       map[string]string `koanf:"eeimagesets"`
	GoogleEarthEngine EarthEngine       `koanf:"googleearthengine"`
}

type EarthEngine struct {
	ProjectID string `koanf:"projectid"`
	Token     string `koanf:"token"`
}

var sourcesEnv = map[string]string{
	"EE_PROJECT": "googleearthengine.projectid",
	"EE_TOKEN":   "googleearthengine.token",
}

// LoadSources layers the sources file, the optional auth override file and
// EE_PROJECT / EE_TOKEN. Missing files are skipped; a document that is not a
// mapping is an error.
func LoadSources(path, authPath string) (Sources, error) {
	k := koanf.New(".")

	for _, p := range []string{path, authPath} {
		if strings.TrimSpace(p) == "" {
			continue
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
			return Sources{}, fmt.Errorf("load sources %s: %w", p, err)
		}
	}

	envProvider := env.ProviderWithValue("EE_", ".", func(key, value string) (string, any) {
		if strings.TrimSpace(value) == "" {
			return "", nil
		}
		return sourcesEnv[key], value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Sources{}, fmt.Errorf("load sources env: %w", err)
	}

	var s Sources
	if err := k.Unmarshal("", &s); err != nil {
		return Sources{}, fmt.Errorf("unmarshal sources: %w", err)
	}
	if s.Datasets == nil {
		s.Datasets = map[string]string{}
	}
	if s.EEImageSets == nil {
		s.EEImageSets = map[string]string{}
	}
	return s, nil
}
