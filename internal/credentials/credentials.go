// Package credentials keeps the registered-user directory and checks
// passwords against it. Digests are bcrypt; plaintext passwords never
// touch storage.
package credentials

import (
	"errors"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/wanderapp/wander/internal/models"
	"github.com/wanderapp/wander/internal/storage"
)

// usersKey is the storage entry holding the full user directory.
const usersKey = "users"

// digestCost is the bcrypt work factor applied to new passwords.
const digestCost = 10

// ErrNameRequired is returned when the name is empty or whitespace-only after trim.
var ErrNameRequired = errors.New("name is required")

// ErrEmailInvalid is returned when the email does not look like an address.
var ErrEmailInvalid = errors.New("email address is invalid")

// ErrEmailTaken is returned when an account already exists for the email.
var ErrEmailTaken = errors.New("email already registered")

// ErrPasswordWeak is returned when the password fails the strength rules:
// at least 8 characters with an upper-case letter, a lower-case letter,
// a digit and a special character.
var ErrPasswordWeak = errors.New("password does not meet strength requirements")

// ErrPasswordMismatch is returned when the confirmation does not match.
var ErrPasswordMismatch = errors.New("passwords do not match")

// ErrBadCredentials is returned by Verify when the email is unknown or the
// password is wrong. The two cases are deliberately indistinguishable.
var ErrBadCredentials = errors.New("invalid email or password")

// dummyDigest is compared against when the email is unknown, keeping the
// cost of a failed lookup in line with a real comparison.
var dummyDigest = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Directory is the persisted set of registered users. All mutations are
// written through to storage before they return.
type Directory struct {
	mu      sync.Mutex
	storage storage.Store
	logger  *zap.Logger
	users   []models.UserIdentity
}

// NewDirectory loads the user list from storage. A corrupt entry is
// discarded and the directory starts empty.
func NewDirectory(s storage.Store, logger *zap.Logger) *Directory {
	d := &Directory{storage: s, logger: logger}
	var users []models.UserIdentity
	if storage.Decode(s, usersKey, &users) {
		d.users = users
	}
	return d
}

// Register validates the submitted fields, digests the password and appends
// the new user to the directory. The returned identity carries the digest,
// not the plaintext.
func (d *Directory) Register(name, email, password, confirm string) (models.UserIdentity, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" {
		return models.UserIdentity{}, ErrNameRequired
	}
	if !validEmail(email) {
		return models.UserIdentity{}, ErrEmailInvalid
	}
	if !strongPassword(password) {
		return models.UserIdentity{}, ErrPasswordWeak
	}
	if password != confirm {
		return models.UserIdentity{}, ErrPasswordMismatch
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(password), digestCost)
	if err != nil {
		return models.UserIdentity{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.indexLocked(email) >= 0 {
		return models.UserIdentity{}, ErrEmailTaken
	}
	user := models.UserIdentity{Name: name, Email: email, PasswordDigest: string(digest)}
	d.users = append(d.users, user)
	if err := d.persistLocked(); err != nil {
		d.users = d.users[:len(d.users)-1]
		return models.UserIdentity{}, err
	}
	d.logger.Info("user registered", zap.String("email", email))
	return user, nil
}

// Verify checks the password for the email and returns the matching
// identity. Unknown emails and wrong passwords both yield ErrBadCredentials.
func (d *Directory) Verify(email, password string) (models.UserIdentity, error) {
	email = normalizeEmail(email)

	d.mu.Lock()
	i := d.indexLocked(email)
	var user models.UserIdentity
	if i >= 0 {
		user = d.users[i]
	}
	d.mu.Unlock()

	if i < 0 {
		// Burn a comparison anyway so timing does not reveal whether
		// the email exists.
		_ = bcrypt.CompareHashAndPassword(dummyDigest, []byte(password))
		return models.UserIdentity{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(password)); err != nil {
		return models.UserIdentity{}, ErrBadCredentials
	}
	return user, nil
}

// Rename updates the stored name for the email, keeping the directory in
// step with profile edits made elsewhere.
func (d *Directory) Rename(email, name string) error {
	email = normalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.indexLocked(email)
	if i < 0 {
		return ErrBadCredentials
	}
	prev := d.users[i].Name
	d.users[i].Name = name
	if err := d.persistLocked(); err != nil {
		d.users[i].Name = prev
		return err
	}
	return nil
}

// indexLocked returns the position of the email in the directory, or -1.
func (d *Directory) indexLocked(email string) int {
	for i, u := range d.users {
		if u.Email == email {
			return i
		}
	}
	return -1
}

func (d *Directory) persistLocked() error {
	users := d.users
	if users == nil {
		users = []models.UserIdentity{}
	}
	return d.storage.Set(usersKey, users)
}

// normalizeEmail trims and lower-cases the address so lookups are
// case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail applies a cheap shape check: one @, non-empty local part, and
// a domain containing a dot.
func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at != strings.LastIndex(email, "@") {
		return false
	}
	domain := email[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return !strings.ContainsAny(email, " \t")
}

// strongPassword enforces the registration rules: minimum 8 runes with at
// least one upper-case letter, one lower-case letter, one digit and one
// special character.
func strongPassword(password string) bool {
	r := []rune(password)
	if len(r) < 8 {
		return false
	}
	var upper, lower, digit, special bool
	for _, c := range r {
		switch {
		case unicode.IsUpper(c):
			upper = true
		case unicode.IsLower(c):
			lower = true
		case unicode.IsDigit(c):
			digit = true
		default:
			special = true
		}
	}
	return upper && lower && digit && special
}
