package questions

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

type customFile struct {
	Questions []Custom `yaml:"questions"`
}

// LoadCustom reads caller-supplied questions from a YAML file. A missing
// path is not an error; audits run without custom questions by default.
func LoadCustom(path string) ([]Custom, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "questions: read custom file")
	}
	var parsed customFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, eris.Wrap(err, "questions: parse custom file")
	}
	return parsed.Questions, nil
}
