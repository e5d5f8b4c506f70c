package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardType classifies a payment card.
type CardType string

const (
	CardTypeDebit  CardType = "DEBIT"
	CardTypeCredit CardType = "CREDIT"
)

// CardStatus is the lifecycle state of a card, independent of its account.
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// FullMask is the rendering used whenever a card number cannot be shown,
// including decrypt failures on legacy rows.
const FullMask = "**** **** **** ****"

// PAN holds a plaintext card number. It exists only transiently, at card
// creation and at audited decrypt-for-display sites. Its fmt output is always
// redacted so a PAN can never leak through logging by accident; callers that
// genuinely need the digits must use Reveal.
type PAN string

// String renders the masked form, never the digits.
func (p PAN) String() string {
	if len(p) < 4 {
		return FullMask
	}
	return "**** **** **** " + string(p[len(p)-4:])
}

// GoString mirrors String so %#v cannot leak either.
func (p PAN) GoString() string { return p.String() }

// Reveal returns the raw digits. Every call site handles sensitive data.
func (p PAN) Reveal() string { return string(p) }

// Card is a payment instrument bound to exactly one account. The number and
// CVV are stored only as ciphertext tokens.
type Card struct {
	ID                  uuid.UUID  `json:"id"`
	EncryptedCardNumber string     `json:"-"`
	EncryptedCVV        string     `json:"-"`
	ExpiryDate          time.Time  `json:"expiry_date"`
	CardHolderName      string     `json:"card_holder_name"`
	Type                CardType   `json:"type"`
	Status              CardStatus `json:"status"`
	DailyLimit          int64      `json:"daily_limit"`
	AccountID           uuid.UUID  `json:"account_id"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Expired reports whether the card's expiry date has passed at the given time.
func (c *Card) Expired(now time.Time) bool {
	return c.ExpiryDate.Before(now)
}

// CardView is the public projection of a card: masked number only.
type CardView struct {
	ID               uuid.UUID  `json:"id"`
	MaskedCardNumber string     `json:"masked_card_number"`
	ExpiryDate       time.Time  `json:"expiry_date"`
	CardHolderName   string     `json:"card_holder_name"`
	Type             CardType   `json:"type"`
	Status           CardStatus `json:"status"`
	DailyLimit       int64      `json:"daily_limit"`
	AccountID        uuid.UUID  `json:"account_id"`
	AccountNumber    string     `json:"account_number"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CreateCardRequest is the admin-facing payload for provisioning a card.
type CreateCardRequest struct {
	AccountID      uuid.UUID `json:"account_id"`
	CardHolderName string    `json:"card_holder_name"`
	Type           CardType  `json:"type"`
	DailyLimit     int64     `json:"daily_limit"`
}
