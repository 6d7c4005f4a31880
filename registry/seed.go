package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"personachat/models"
)

type seedFile struct {
	Characters []seedCharacter `yaml:"characters"`
}

type seedCharacter struct {
	Name          string   `yaml:"name"`
	Personality   []string `yaml:"personality"`
	SpeakingStyle string   `yaml:"speaking_style"`
	Backstory     string   `yaml:"backstory"`
	Catchphrases  []string `yaml:"catchphrases"`
	AvatarURL     string   `yaml:"avatar_url"`
}

// LoadSeedFile registers preset characters from a YAML file so the service
// starts with usable personas without model calls. Returns the number of
// characters loaded.
func (r *Registry) LoadSeedFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parsing seed file %s: %w", path, err)
	}

	for _, char := range seed.Characters {
		if char.Name == "" {
			continue
		}
		r.Add(&models.CharacterProfile{
			Name:          char.Name,
			Personality:   char.Personality,
			SpeakingStyle: char.SpeakingStyle,
			Backstory:     char.Backstory,
			Catchphrases:  char.Catchphrases,
			AvatarURL:     char.AvatarURL,
		})
	}

	return len(seed.Characters), nil
}
