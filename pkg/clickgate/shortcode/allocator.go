// Package shortcode allocates collision-free short codes for links.
package shortcode

import (
	"crypto/rand"
	"errors"
	"math/big"

	"gorm.io/gorm"

	"github.com/clickgate/clickgate/pkg/clickgate/models"
)

const (
	// Charset is the 62-symbol alphabet codes are drawn from
	Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength yields ~2×10^14 combinations, so collisions stay
	// negligible far beyond any realistic link count
	CodeLength = 8
	// MaxAttempts bounds the collision-retry loop
	MaxAttempts = 10
)

// ErrExhausted is returned when MaxAttempts consecutive candidates collided
var ErrExhausted = errors.New("shortcode: could not allocate a unique code")

// Allocator generates unique short codes, checking candidates against the
// links table before handing them out.
type Allocator struct {
	db      *gorm.DB
	length  int
	charset string
}

// NewAllocator creates an allocator with the default length and charset
func NewAllocator(db *gorm.DB) *Allocator {
	return &Allocator{db: db, length: CodeLength, charset: Charset}
}

// Allocate returns a short code not present in storage. It terminates after
// MaxAttempts collisions with ErrExhausted rather than spinning forever.
func (a *Allocator) Allocate() (string, error) {
	for i := 0; i < MaxAttempts; i++ {
		code, err := a.randomCode()
		if err != nil {
			return "", err
		}
		exists, err := a.codeExists(code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrExhausted
}

func (a *Allocator) randomCode() (string, error) {
	b := make([]byte, a.length)
	max := big.NewInt(int64(len(a.charset)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = a.charset[n.Int64()]
	}
	return string(b), nil
}

// codeExists checks storage, including soft-deleted links, since a reused
// code would resurrect a dead link's traffic.
func (a *Allocator) codeExists(code string) (bool, error) {
	var count int64
	err := a.db.Unscoped().Model(&models.Link{}).Where("short_code = ?", code).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
