package config

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

// charmap used to decode pose scripts that are not valid UTF-8
var scriptCharMap = charmap.Windows1252

func lookupEncoding(name string) (*charmap.Charmap, error) {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && strings.EqualFold(cm.String(), name) {
			return cm, nil
		}
	}
	return nil, errors.Errorf("Unknown script encoding %q (known: %s)", name, strings.Join(ListEncodings(), ", "))
}

func SetEncoding(name string) error {
	cm, err := lookupEncoding(name)
	if err != nil {
		return err
	}
	scriptCharMap = cm
	return nil
}

func ListEncodings() []string {
	list := make([]string, 0, len(charmap.All))
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok {
			list = append(list, cm.String())
		}
	}
	return list
}

func GetEncoding() *charmap.Charmap {
	return scriptCharMap
}
