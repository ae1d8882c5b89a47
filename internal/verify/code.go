package verify

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/kozaktomas/face-attend/internal/attendance"
	"github.com/kozaktomas/face-attend/internal/store"
)

// Session codes are 6-10 uppercase alphanumerics. Input is case-insensitive
// and normalized before lookup.
var codePattern = regexp.MustCompile(`^[A-Z0-9]{6,10}$`)

// Generated codes avoid ambiguous glyphs (0/O, 1/I) so students can enter
// them from a projected slide.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const generatedCodeLength = 6

// GenerateCode returns a fresh random session code.
func GenerateCode() (string, error) {
	buf := make([]byte, generatedCodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate session code: %w", err)
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// NormalizeCode uppercases and trims a claimed session code. Returns
// attendance.ErrInvalidCode when the result is not a well-formed code.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !codePattern.MatchString(code) {
		return "", attendance.ErrInvalidCode
	}
	return code, nil
}

// CodeValidator resolves a claimed session code against the session store
// and the caller's attendance history.
type CodeValidator struct {
	sessions store.SessionRepository
	records  store.AttendanceRepository
}

// NewCodeValidator creates a validator over the given stores.
func NewCodeValidator(sessions store.SessionRepository, records store.AttendanceRepository) *CodeValidator {
	return &CodeValidator{sessions: sessions, records: records}
}

// Validate checks a claimed code for the given caller at the given instant.
// The already-marked check runs here, before any camera work, so a student
// who already marked attendance finds out immediately.
func (v *CodeValidator) Validate(ctx context.Context, rawCode, ownerID string, now time.Time) (*attendance.Session, error) {
	code, err := NormalizeCode(rawCode)
	if err != nil {
		return nil, err
	}

	session, err := v.sessions.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, attendance.ErrSessionNotFound) {
			return nil, attendance.ErrInvalidCode
		}
		return nil, fmt.Errorf("look up session: %w", err)
	}

	if session.Status != attendance.SessionStatusActive {
		return nil, attendance.ErrInvalidCode
	}
	if session.Expired(now) {
		return nil, attendance.ErrSessionExpired
	}

	marked, err := v.records.Has(ctx, session.ID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("check existing attendance: %w", err)
	}
	if marked {
		return nil, attendance.ErrAlreadyMarked
	}

	return session, nil
}
