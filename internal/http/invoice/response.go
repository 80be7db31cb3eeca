package invoice

import (
	"time"

	"github.com/laundrydesk/laundrydesk/internal/invoice"
)

type InvoiceResponse struct {
	ID            int64          `json:"id"`
	Code          string         `json:"code"`
	AccountID     int64          `json:"account_id"`
	AccountCode   string         `json:"account_code,omitempty"`
	Status        invoice.Status `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ReadyBy       time.Time      `json:"ready_by"`
	BalanceBefore int64          `json:"balance_before"`
	BalanceAfter  int64          `json:"balance_after"`
	TotalCost     int64          `json:"total_cost"`
	Lines         []LineResponse `json:"lines,omitempty"`
}

type LineResponse struct {
	ItemID   int64 `json:"item_id"`
	SerialNo int   `json:"serial_no"`
	TagNo    int   `json:"tag_no"`
}

func ToResponse(inv *invoice.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID,
		Code:          inv.Code,
		AccountID:     inv.AccountID,
		AccountCode:   inv.AccountCode,
		Status:        inv.Status,
		CreatedAt:     inv.CreatedAt,
		ReadyBy:       inv.ReadyBy,
		BalanceBefore: inv.BalanceBefore,
		BalanceAfter:  inv.BalanceAfter,
		TotalCost:     inv.TotalCost,
	}

	for _, l := range inv.Lines {
		resp.Lines = append(resp.Lines, LineResponse{ItemID: l.ItemID, SerialNo: l.SerialNo, TagNo: l.TagNo})
	}

	return resp
}

func toResponseList(invs []*invoice.Invoice) []InvoiceResponse {
	resp := make([]InvoiceResponse, len(invs))
	for i, inv := range invs {
		resp[i] = ToResponse(inv)
	}

	return resp
}
