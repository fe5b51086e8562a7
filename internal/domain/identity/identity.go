// Package identity derives deterministic document ids for metric records so
// that re-processing the same logical day overwrites instead of duplicating.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	separator  = "|"
	dateLayout = "2006-01-02"
)

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://metrics.opensearch.org/records"))

// Namespace is the UUID namespace every record id is derived under.
// Changing it would re-key all stored documents.
func Namespace() uuid.UUID { return namespace }

// Key holds the semantic fields that identify one record.
type Key struct {
	Repository     string
	Kind           string
	Discriminators []string
	Date           time.Time
}

// NewKey is shorthand for building a Key with a single discriminator.
func NewKey(repository, kind, discriminator string, date time.Time) Key {
	return Key{Repository: repository, Kind: kind, Discriminators: []string{discriminator}, Date: date}
}

var escaper = strings.NewReplacer(`\`, `\\`, separator, `\`+separator)

// Canonical renders the key as repository|kind|d1|...|dn|YYYY-MM-DD with the
// date truncated to the UTC day. Separators inside fields are escaped.
func Canonical(k Key) (string, error) {
	if err := k.validate(); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(k.Discriminators)+3)
	parts = append(parts, escaper.Replace(k.Repository), escaper.Replace(k.Kind))
	for _, d := range k.Discriminators {
		parts = append(parts, escaper.Replace(d))
	}
	parts = append(parts, k.Date.UTC().Format(dateLayout))
	return strings.Join(parts, separator), nil
}

// ID returns the name-based (SHA-1) UUID of the canonical key.
func ID(k Key) (string, error) {
	c, err := Canonical(k)
	if err != nil {
		return "", err
	}
	return uuid.NewSHA1(namespace, []byte(c)).String(), nil
}

func (k Key) validate() error {
	switch {
	case strings.TrimSpace(k.Repository) == "":
		return fmt.Errorf("%w: repository", ErrEmptyField)
	case strings.TrimSpace(k.Kind) == "":
		return fmt.Errorf("%w: kind", ErrEmptyField)
	case k.Date.IsZero():
		return fmt.Errorf("%w: date", ErrEmptyField)
	}
	for i, d := range k.Discriminators {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("%w: discriminator %d", ErrEmptyField, i)
		}
	}
	return nil
}
