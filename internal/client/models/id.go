package models

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

const (
	idSuffixLength = 7
	base36         = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var (
	idMu   sync.Mutex
	lastID string
	max36  = big.NewInt(int64(len(base36)))
)

// GenerateID returns a device-local identifier of the form
// offline_<unix-ms>_<7 base36 chars>. Two consecutive calls never return
// the same value.
func GenerateID() string {
	idMu.Lock()
	defer idMu.Unlock()

	for {
		id := common.LocalIDPrefix + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + randomBase36(idSuffixLength)
		if id != lastID {
			lastID = id
			return id
		}
	}
}

func randomBase36(n int) string {
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, max36)
		if err != nil {
			panic("crypto/rand: " + err.Error())
		}
		b[i] = base36[v.Int64()]
	}
	return string(b)
}

// IsLocalID reports whether id was produced by GenerateID.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, common.LocalIDPrefix)
}
