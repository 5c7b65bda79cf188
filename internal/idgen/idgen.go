// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"
	"os"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ID prefixes per use.
const (
	RunPrefix   = "run-"
	OwnerPrefix = "hub-"
)

// Alphabet defines the character set used for the random portion of the ID.
// Lower-case only so IDs are safe in NATS subjects and S3 keys.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// RunID returns a new pump run ID.
func RunID() (string, error) {
	return GenerateWithPrefix(RunPrefix)
}

// Owner returns a lease owner ID for this process: the host name followed
// by a random suffix, so concurrent instances never share an owner.
func Owner() (string, error) {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return GenerateWithPrefix(OwnerPrefix + host + "-")
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
