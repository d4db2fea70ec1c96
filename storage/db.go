package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"time"
)

const Prefix = "RG"

var (
	// MaxTime helper to query into the future
	MaxTime = time.Unix(0, math.MaxInt64)

	ErrInvalidKey = errors.New("invalid artifact key")
)

// Store keeps the history of the rendered artifacts
type Store interface {
	// Put stores v for k at t unless it is identical to the latest v stored for k,
	// it reports whether something was written
	Put(k string, v []byte, t time.Time) (bool, error)
	PutTx(tx Tx, k string, v []byte, t time.Time) (bool, error)
	Get(k string) (*Artifact, error)
	Keys() ([]string, error)
	GetAll(k string, count int) ([]Artifact, error)
	Begin() Tx
}

type Tx interface {
	Discard()
	Commit() error
}

type Artifact struct {
	Key   string
	Value []byte
	Time  time.Time
}

// ArtifactKey returns the history key of a generated file of a design
func ArtifactKey(device, design, file string) string {
	return strings.Join([]string{device, design, file}, "/")
}

// DataKey returns the key of an artifact at t
func DataKey(k string, t time.Time) []byte {
	// the data key Prefix+"D"+k+#+time
	dk := make([]byte, len(Prefix)+1+len(k)+1+8)
	copy(dk, Prefix+"D")
	copy(dk[len(Prefix)+1:], k)
	dk[len(Prefix)+1+len(k)] = '#'
	// using reverse timestamp, most recent first
	ts := int64tob(math.MaxInt64 - t.UnixNano())
	copy(dk[len(Prefix)+1+len(k)+1:], ts)
	return dk
}

// DataPrefix returns the prefix of all the artifacts of k
func DataPrefix(k string) []byte {
	dk := DataKey(k, MaxTime)
	return dk[:len(dk)-8]
}

// ListKey returns the key used to list all keys
func ListKey(k string) []byte {
	// a key Prefix+"L"+key
	return []byte(Prefix + "L" + k)
}

// ReadDataKey returns the key and time of a data key
func ReadDataKey(dk []byte) (string, time.Time, error) {
	var t time.Time
	if len(dk) < len(Prefix)+1+1+8 || !bytes.HasPrefix(dk, []byte(Prefix+"D")) {
		return "", t, ErrInvalidKey
	}

	buf := bytes.NewBuffer(dk[len(dk)-8:])

	// read back time
	var ts int64
	err := binary.Read(buf, binary.BigEndian, &ts)
	if err != nil {
		return "", t, err
	}
	// reverse ts back
	t = time.Unix(0, math.MaxInt64-ts).UTC()

	k := make([]byte, len(dk)-len(Prefix)-1-1-8)
	copy(k, dk[len(Prefix)+1:len(dk)-1-8])

	return string(k), t, nil
}

func int64tob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}
