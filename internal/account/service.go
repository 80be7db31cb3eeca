package account

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/skip2/go-qrcode"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=account
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Account, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NormalizeCode trims the whitespace scanners and keyboards tend to add around a code.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// Lookup returns the account and its current balance.
func (s *Service) Lookup(ctx context.Context, code string) (*Account, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrNotFound
	}

	return s.repo.FindByCode(ctx, code)
}

const (
	minQRSize = 64
	maxQRSize = 1024
)

// QRCode renders the account code as a PNG so it can be printed on a card.
// The account must exist.
func (s *Service) QRCode(ctx context.Context, code string, size int) ([]byte, error) {
	acc, err := s.Lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	size = min(max(size, minQRSize), maxQRSize)

	qr, err := qrcode.New(acc.Code, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encoding qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(size)); err != nil {
		return nil, fmt.Errorf("rendering qr code: %w", err)
	}

	return buf.Bytes(), nil
}
