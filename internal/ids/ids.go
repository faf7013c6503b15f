// Package ids generates sortable unique identifiers for tokens and stored objects.
package ids

import "github.com/segmentio/ksuid"

func New() string {
	return ksuid.New().String()
}
