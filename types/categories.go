package types

import (
	"gopkg.in/yaml.v3"
	"os"
)

// CategorySet is the fixed set of entity-type labels considered
// clinically relevant. Built once at startup and never mutated after.
type CategorySet map[string]struct{}

// defaultMedicalCategories covers the MedCAT type labels the gateway
// treats as medical.
var defaultMedicalCategories = []string{
	"Disease",
	"Disease or Syndrome",
	"Disorder",
	"Finding",
	"Sign or Symptom",
	"Symptom",
	"Procedure",
	"Therapeutic or Preventive Procedure",
	"Diagnostic Procedure",
	"Laboratory Procedure",
	"Substance",
	"Pharmacologic Substance",
	"Medication",
	"Clinical Drug",
	"Anatomy",
	"Body Part, Organ, or Organ Component",
	"Body Structure",
	"Organism Function",
	"Pathologic Function",
	"Mental or Behavioral Dysfunction",
	"Injury or Poisoning",
	"Neoplastic Process",
	"Physiologic Function",
}

func NewCategorySet(labels []string) CategorySet {
	set := make(CategorySet, len(labels))
	for _, label := range labels {
		set[label] = struct{}{}
	}
	return set
}

func DefaultMedicalCategories() CategorySet {
	return NewCategorySet(defaultMedicalCategories)
}

func (set CategorySet) Contains(label string) bool {
	_, ok := set[label]
	return ok
}

// ContainsAny reports whether any of the labels is in the set.
func (set CategorySet) ContainsAny(labels []string) bool {
	for _, label := range labels {
		if set.Contains(label) {
			return true
		}
	}
	return false
}

type categoriesFile struct {
	MedicalCategories []string `yaml:"medical_categories"`
}

// LoadCategories reads a category-set override file. An empty path
// yields the compiled defaults.
func LoadCategories(filePath string) (CategorySet, error) {
	if filePath == "" {
		return DefaultMedicalCategories(), nil
	}
	buf, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var file categoriesFile
	if err := yaml.Unmarshal(buf, &file); err != nil {
		return nil, err
	}
	return NewCategorySet(file.MedicalCategories), nil
}
