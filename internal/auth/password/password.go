package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

var ErrMalformedHash = errors.New("malformed_password_hash")

type encodedHash struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// Hash returns an Argon2id PHC string for password.
func Hash(password string) (string, error) {
	return HashWithReader(password, rand.Reader)
}

// HashWithReader is Hash with an explicit salt source.
func HashWithReader(password string, random io.Reader) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := io.ReadFull(random, salt); err != nil {
		return "", err
	}
	h := encodedHash{
		memory:  argonMemory,
		time:    argonTime,
		threads: argonThreads,
		salt:    salt,
		key:     argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen),
	}
	return h.String(), nil
}

// Verify checks password against an encoded Argon2id hash. A malformed hash
// never matches.
func Verify(password, encoded string) bool {
	h, err := parse(encoded)
	if err != nil {
		return false
	}
	check := argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(h.key, check) == 1
}

// Check reports whether encoded is a well-formed Argon2id hash.
func Check(encoded string) error {
	_, err := parse(encoded)
	return err
}

func (h encodedHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func parse(encoded string) (encodedHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return encodedHash{}, ErrMalformedHash
	}
	if parts[2] != "v="+strconv.Itoa(argon2.Version) {
		return encodedHash{}, ErrMalformedHash
	}

	var h encodedHash
	for _, param := range strings.Split(parts[3], ",") {
		name, value, ok := strings.Cut(param, "=")
		if !ok {
			return encodedHash{}, ErrMalformedHash
		}
		var err error
		switch name {
		case "m":
			h.memory, err = parseUint32(value)
		case "t":
			h.time, err = parseUint32(value)
		case "p":
			var p uint64
			p, err = strconv.ParseUint(value, 10, 8)
			h.threads = uint8(p)
		default:
			err = ErrMalformedHash
		}
		if err != nil {
			return encodedHash{}, ErrMalformedHash
		}
	}
	if h.memory == 0 || h.time == 0 || h.threads == 0 {
		return encodedHash{}, ErrMalformedHash
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return encodedHash{}, ErrMalformedHash
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return encodedHash{}, ErrMalformedHash
	}
	return h, nil
}

func parseUint32(value string) (uint32, error) {
	v, err := strconv.ParseUint(value, 10, 32)
	return uint32(v), err
}
