package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"speaking-assessment-service/internal/domain"
)

// BankFile is the YAML layout of a question bank: units -> levels -> questions.
type BankFile struct {
	Units map[string]map[string][]domain.QuestionRecord `yaml:"units"`
}

// ReadBankFile parses a YAML question bank and validates every record.
func ReadBankFile(path string) ([]domain.QuestionSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return ParseBank(data)
}

// ParseBank decodes YAML question bank content.
func ParseBank(data []byte) ([]domain.QuestionSet, error) {
	var file BankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	var sets []domain.QuestionSet
	for unit, levels := range file.Units {
		for level, records := range levels {
			set, err := domain.BuildQuestionSet(unit, level, records)
			if err != nil {
				return nil, fmt.Errorf("unit %s level %s: %w", unit, level, err)
			}
			sets = append(sets, set)
		}
	}
	return sets, nil
}

// NewFileQuestionLoader loads a YAML bank once and serves it from memory.
func NewFileQuestionLoader(path string) (*StaticQuestionLoader, error) {
	sets, err := ReadBankFile(path)
	if err != nil {
		return nil, err
	}
	bank := make(map[string]map[string][]domain.Question)
	for _, set := range sets {
		if bank[set.Unit] == nil {
			bank[set.Unit] = make(map[string][]domain.Question)
		}
		bank[set.Unit][set.Level] = set.Questions
	}
	return NewStaticQuestionLoader(bank), nil
}
