/**
 * @description
 * Card provisioning and lifecycle. Provisioning generates a random card
 * number and CVV, encrypts both before they touch storage, and retries on
 * ciphertext collision up to a fixed budget. Reads only ever hand out masked
 * projections; the plaintext number exists in memory for the duration of one
 * provisioning call and nowhere else.
 *
 * @dependencies
 * - crypto/rand: Card number and CVV generation.
 * - internal/cardcrypto: Encryption and masking.
 */

package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/bankcards/bankcards-service/internal/cardcrypto"
	"github.com/bankcards/bankcards-service/internal/domain"
	"github.com/bankcards/bankcards-service/internal/store"
)

const (
	// maxCardNumberAttempts caps generation retries so a pathological
	// collision streak fails loudly instead of looping.
	maxCardNumberAttempts = 20

	cardValidity = 3 * 365 * 24 * time.Hour
)

// CardService handles card provisioning, lookups, and status changes.
type CardService struct {
	repo   store.Repository
	codec  *cardcrypto.Codec
	logger *slog.Logger
}

// NewCardService creates a new CardService.
func NewCardService(repo store.Repository, codec *cardcrypto.Codec, logger *slog.Logger) *CardService {
	return &CardService{repo: repo, codec: codec, logger: logger}
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}

// generateCardNumber produces an encrypted 16-digit card number not already
// present in storage, retrying up to the attempt budget.
func (s *CardService) generateCardNumber(ctx context.Context) (pan domain.PAN, encrypted string, err error) {
	for attempt := 0; attempt < maxCardNumberAttempts; attempt++ {
		number, err := randomDigits(16)
		if err != nil {
			return "", "", err
		}
		token, err := s.codec.Encrypt(number)
		if err != nil {
			return "", "", err
		}
		exists, err := s.repo.CardNumberExists(ctx, token)
		if err != nil {
			return "", "", err
		}
		if !exists {
			return domain.PAN(number), token, nil
		}
	}
	return "", "", ErrCardGenerationExhausted
}

// CreateCard provisions a card on an account. Admin only.
func (s *CardService) CreateCard(ctx context.Context, caller Identity, req domain.CreateCardRequest) (*domain.CardView, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}
	account, err := s.repo.FindAccountByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	pan, encryptedNumber, err := s.generateCardNumber(ctx)
	if err != nil {
		return nil, err
	}
	cvv, err := randomDigits(3)
	if err != nil {
		return nil, err
	}
	encryptedCVV, err := s.codec.Encrypt(cvv)
	if err != nil {
		return nil, err
	}

	card := &domain.Card{
		ID:                  uuid.New(),
		EncryptedCardNumber: encryptedNumber,
		EncryptedCVV:        encryptedCVV,
		ExpiryDate:          time.Now().Add(cardValidity),
		CardHolderName:      req.CardHolderName,
		Type:                req.Type,
		Status:              domain.CardStatusActive,
		DailyLimit:          req.DailyLimit,
		AccountID:           account.ID,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return nil, err
	}

	s.logger.Info("card created",
		"card_id", card.ID,
		"account_id", account.ID,
		"masked_number", pan.String(),
	)
	view := s.cardView(card, account.AccountNumber)
	return &view, nil
}

// cardView builds the masked public projection of a card.
func (s *CardService) cardView(card *domain.Card, accountNumber string) domain.CardView {
	return domain.CardView{
		ID:               card.ID,
		MaskedCardNumber: s.codec.Mask(card.EncryptedCardNumber),
		ExpiryDate:       card.ExpiryDate,
		CardHolderName:   card.CardHolderName,
		Type:             card.Type,
		Status:           card.Status,
		DailyLimit:       card.DailyLimit,
		AccountID:        card.AccountID,
		AccountNumber:    accountNumber,
		CreatedAt:        card.CreatedAt,
	}
}

// loadCardWithAccount fetches a card and its owning account together, since
// every card decision needs the owner for authorization.
func (s *CardService) loadCardWithAccount(ctx context.Context, cardID uuid.UUID) (*domain.Card, *domain.Account, error) {
	card, err := s.repo.FindCardByID(ctx, cardID)
	if err != nil {
		return nil, nil, err
	}
	account, err := s.repo.FindAccountByID(ctx, card.AccountID)
	if err != nil {
		return nil, nil, err
	}
	return card, account, nil
}

// GetCard fetches one card as a masked view, owner-or-admin gated.
func (s *CardService) GetCard(ctx context.Context, caller Identity, cardID uuid.UUID) (*domain.CardView, error) {
	card, account, err := s.loadCardWithAccount(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(caller, account.UserID); err != nil {
		return nil, err
	}
	view := s.cardView(card, account.AccountNumber)
	return &view, nil
}

// ListUserCards lists a user's cards across all their accounts.
func (s *CardService) ListUserCards(ctx context.Context, caller Identity, userID uuid.UUID) ([]domain.CardView, error) {
	if err := RequireOwnerOrAdmin(caller, userID); err != nil {
		return nil, err
	}
	cards, err := s.repo.FindCardsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.cardViews(ctx, cards)
}

// ListAccountCards lists the cards on one account.
func (s *CardService) ListAccountCards(ctx context.Context, caller Identity, accountID uuid.UUID) ([]domain.CardView, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := RequireOwnerOrAdmin(caller, account.UserID); err != nil {
		return nil, err
	}
	cards, err := s.repo.FindCardsByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.cardViews(ctx, cards)
}

func (s *CardService) cardViews(ctx context.Context, cards []domain.Card) ([]domain.CardView, error) {
	views := make([]domain.CardView, 0, len(cards))
	for i := range cards {
		account, err := s.repo.FindAccountByID(ctx, cards[i].AccountID)
		if err != nil {
			return nil, err
		}
		views = append(views, s.cardView(&cards[i], account.AccountNumber))
	}
	return views, nil
}

// UpdateCardStatus changes a card's status. An owner may only block their own
// card; an admin may set any status on any card.
func (s *CardService) UpdateCardStatus(ctx context.Context, caller Identity, cardID uuid.UUID, status domain.CardStatus) (*domain.CardView, error) {
	switch status {
	case domain.CardStatusActive, domain.CardStatusBlocked, domain.CardStatusExpired:
	default:
		return nil, &domain.ValidationError{
			Kind:    domain.ValidationInvalidCardStatus,
			Message: fmt.Sprintf("unknown card status %q", status),
		}
	}

	card, account, err := s.loadCardWithAccount(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if !caller.Admin {
		if caller.UserID != account.UserID || status != domain.CardStatusBlocked {
			return nil, ErrForbidden
		}
	}

	if err := s.repo.UpdateCardStatus(ctx, cardID, status); err != nil {
		return nil, err
	}
	card.Status = status

	s.logger.Info("card status updated", "card_id", cardID, "status", status)
	view := s.cardView(card, account.AccountNumber)
	return &view, nil
}

// DeleteCard removes a card. Admin only.
func (s *CardService) DeleteCard(ctx context.Context, caller Identity, cardID uuid.UUID) error {
	if err := RequireAdmin(caller); err != nil {
		return err
	}
	if err := s.repo.DeleteCard(ctx, cardID); err != nil {
		return err
	}
	s.logger.Info("card deleted", "card_id", cardID)
	return nil
}
