package textmetrics

import (
	"fmt"
	"os"
	"path/filepath"
)

// Loughran-McDonald word list file names.
const (
	UncertaintyFile = "LM_Uncertainty.txt"
	PositiveFile    = "LM_Positive.txt"
	NegativeFile    = "LM_Negative.txt"
)

// Dictionary is a set of lower-case words.
type Dictionary map[string]struct{}

// NewDictionary builds a dictionary from the tokens of the given words.
func NewDictionary(words ...string) Dictionary {
	d := make(Dictionary, len(words))
	for _, w := range words {
		for _, tok := range Tokenize(w) {
			d[tok] = struct{}{}
		}
	}
	return d
}

// Contains reports whether word is in the dictionary.
func (d Dictionary) Contains(word string) bool {
	_, ok := d[word]
	return ok
}

// LoadDictionary reads a word list. Every token in the file is an entry,
// so one-word-per-line and free-form lists both work.
func LoadDictionary(path string) (Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	d := NewDictionary(string(data))
	if len(d) == 0 {
		return nil, fmt.Errorf("dictionary %s is empty", path)
	}
	return d, nil
}

// Dictionaries holds the three Loughran-McDonald lists.
type Dictionaries struct {
	Uncertainty Dictionary
	Positive    Dictionary
	Negative    Dictionary
}

// LoadDictionaries reads the Loughran-McDonald lists from dir.
func LoadDictionaries(dir string) (Dictionaries, error) {
	var (
		d   Dictionaries
		err error
	)
	if d.Uncertainty, err = LoadDictionary(filepath.Join(dir, UncertaintyFile)); err != nil {
		return Dictionaries{}, err
	}
	if d.Positive, err = LoadDictionary(filepath.Join(dir, PositiveFile)); err != nil {
		return Dictionaries{}, err
	}
	if d.Negative, err = LoadDictionary(filepath.Join(dir, NegativeFile)); err != nil {
		return Dictionaries{}, err
	}
	return d, nil
}
